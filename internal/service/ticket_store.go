package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"gorm.io/gorm"
)

// TicketStore persists tickets and their messages and publishes an event after every mutation.
type TicketStore struct {
	db     *gorm.DB
	events events.Publisher
	now    func() time.Time
}

type TicketStoreOption func(*TicketStore)

// WithClock overrides the time source used for lastUpdate and message timestamps.
func WithClock(now func() time.Time) TicketStoreOption {
	return func(s *TicketStore) { s.now = now }
}

func NewTicketStore(db *gorm.DB, pub events.Publisher, opts ...TicketStoreOption) *TicketStore {
	if pub == nil {
		pub = events.Discard{}
	}
	s := &TicketStore{db: db, events: pub, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TicketStore) publish(ctx context.Context, typ events.Type, t *model.Ticket) {
	s.events.Publish(ctx, events.New(typ, t, s.now()))
}

// withDetails joins the client and loads messages in insertion order.
func withDetails(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Client").Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("ticket_messages.id ASC")
	})
}

// takeOpen returns the oldest open ticket matching the query, or nil.
func (s *TicketStore) takeOpen(ctx context.Context, query string, args ...interface{}) (*model.Ticket, error) {
	var t model.Ticket
	err := withDetails(s.db.WithContext(ctx)).
		Where("status <> ?", model.TicketStatusResolved).
		Where(query, args...).
		Order("created_at ASC").
		Take(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// FindOpenTicket is the identity matching policy: the client's open ticket on
// the channel. Tickets opened before the client record existed are matched on
// legacyName and adopted; the adoption is persisted by the next AppendMessage.
func (s *TicketStore) FindOpenTicket(ctx context.Context, c *model.Client, channel model.Channel, legacyName string) (*model.Ticket, error) {
	t, err := s.takeOpen(ctx, "client_id = ? AND channel = ?", c.ID, channel)
	if err != nil || t != nil {
		return t, err
	}
	if legacyName == "" {
		return nil, nil
	}
	t, err = s.FindOpenTicketByLegacyName(ctx, legacyName, channel)
	if err != nil || t == nil {
		return nil, err
	}
	t.AttachClient(c)
	return t, nil
}

func (s *TicketStore) FindOpenTicketByLegacyName(ctx context.Context, name string, channel model.Channel) (*model.Ticket, error) {
	return s.takeOpen(ctx, "client_name = ? AND channel = ?", name, channel)
}

// FindOpenTicketBySubject is the identity+subject matching policy used for email.
// Without a client the raw sender address stands in for the identity.
func (s *TicketStore) FindOpenTicketBySubject(ctx context.Context, c *model.Client, rawSender, subject string, channel model.Channel) (*model.Ticket, error) {
	if c != nil {
		return s.takeOpen(ctx, "client_id = ? AND subject = ? AND channel = ?", c.ID, subject, channel)
	}
	return s.takeOpen(ctx, "client_name = ? AND subject = ? AND channel = ?", rawSender, subject, channel)
}

// NewTicket describes a ticket opened by an inbound message.
type NewTicket struct {
	Client     *model.Client
	ClientName string
	Subject    string
	Channel    model.Channel
	// Topic defaults to the channel's default topic.
	Topic          string
	InitialMessage string
}

func (s *TicketStore) CreateTicket(ctx context.Context, in NewTicket) (*model.Ticket, error) {
	now := s.now()
	t := &model.Ticket{
		ClientName: in.ClientName,
		Subject:    in.Subject,
		Topic:      in.Topic,
		Channel:    in.Channel,
		Status:     model.TicketStatusNew,
		Priority:   model.TicketPriorityMedium,
		LastUpdate: model.FormatLastUpdate(now),
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages: []model.Message{{
			Message:    in.InitialMessage,
			FromClient: true,
			Timestamp:  now,
		}},
	}
	if in.Client != nil {
		id := in.Client.ID
		t.ClientID = &id
		if t.ClientName == "" {
			t.ClientName = in.Client.DisplayName()
		}
	}
	if t.Subject == "" {
		t.Subject = model.DefaultSubject(in.Channel, t.ClientName)
	}
	if t.Topic == "" {
		t.Topic = model.DefaultTopic(in.Channel)
	}
	if err := validateTicket(t); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit("Client").Create(t).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	t.Client = in.Client
	s.publish(ctx, events.TicketCreated, t)
	return t, nil
}

// AppendOptions tunes AppendMessage.
type AppendOptions struct {
	// Topic, when set, replaces the ticket's topic.
	Topic string
}

// AppendMessage adds a message to t and refreshes lastUpdate, the denormalized
// client name and placeholder topics. t is updated in place.
func (s *TicketStore) AppendMessage(ctx context.Context, t *model.Ticket, text string, fromClient bool, opts AppendOptions) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message is required", errs.ErrValidation)
	}
	now := s.now()
	msg := model.Message{TicketID: t.ID, Message: text, FromClient: fromClient, Timestamp: now}

	if t.Client != nil {
		t.ClientName = t.Client.DisplayName()
	}
	switch {
	case opts.Topic != "":
		t.Topic = opts.Topic
	case model.IsPlaceholderTopic(t.Topic):
		t.Topic = model.DefaultTopic(t.Channel)
	}
	t.LastUpdate = model.FormatLastUpdate(now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"client_id":   t.ClientID,
			"client_name": t.ClientName,
			"topic":       t.Topic,
			"last_update": t.LastUpdate,
			"updated_at":  now,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("append message to ticket %s: %w", t.ID, err)
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = now
	s.publish(ctx, events.TicketMessageAdded, t)
	return nil
}

func validateTicket(t *model.Ticket) error {
	var problems []string
	if strings.TrimSpace(t.Subject) == "" {
		problems = append(problems, "subject is required")
	}
	if !t.Channel.Valid() {
		problems = append(problems, fmt.Sprintf("invalid channel %q", t.Channel))
	}
	if !t.Status.Valid() {
		problems = append(problems, fmt.Sprintf("invalid status %q", t.Status))
	}
	if !t.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("invalid priority %q", t.Priority))
	}
	if t.ClientID == nil && strings.TrimSpace(t.ClientName) == "" {
		problems = append(problems, "clientName is required without a client")
	}
	for i, m := range t.Messages {
		if strings.TrimSpace(m.Message) == "" {
			problems = append(problems, fmt.Sprintf("messages[%d].message is required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	ClientID string
	Status   model.TicketStatus
	Channel  model.Channel
	Priority model.TicketPriority
	Limit    int
	Offset   int
}

// List returns tickets newest-updated first with client and messages joined, plus the unpaginated total.
func (s *TicketStore) List(ctx context.Context, f ListFilter) ([]model.Ticket, int64, error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		if f.ClientID != "" {
			tx = tx.Where("client_id = ?", f.ClientID)
		}
		if f.Status != "" {
			tx = tx.Where("status = ?", f.Status)
		}
		if f.Channel != "" {
			tx = tx.Where("channel = ?", f.Channel)
		}
		if f.Priority != "" {
			tx = tx.Where("priority = ?", f.Priority)
		}
		return tx
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Ticket{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tx := withDetails(s.db.WithContext(ctx)).Scopes(filter)
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	if f.Offset > 0 {
		tx = tx.Offset(f.Offset)
	}
	items := []model.Ticket{}
	if err := tx.Order("updated_at DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByClient is a client's history: tickets referencing it, plus unattached
// tickets whose clientName is one of its identifiers.
func (s *TicketStore) ListByClient(ctx context.Context, c *model.Client) ([]model.Ticket, error) {
	var names []string
	for _, n := range []string{c.Whatsapp, c.Email} {
		if n != "" {
			names = append(names, n)
		}
	}
	tx := withDetails(s.db.WithContext(ctx))
	if len(names) > 0 {
		tx = tx.Where("client_id = ? OR (client_id IS NULL AND client_name IN ?)", c.ID, names)
	} else {
		tx = tx.Where("client_id = ?", c.ID)
	}
	items := []model.Ticket{}
	if err := tx.Order("updated_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ResolvedBefore returns resolved tickets last updated before cutoff.
func (s *TicketStore) ResolvedBefore(ctx context.Context, cutoff time.Time) ([]model.Ticket, error) {
	items := []model.Ticket{}
	err := withDetails(s.db.WithContext(ctx)).
		Where("status = ? AND updated_at < ?", model.TicketStatusResolved, cutoff).
		Order("updated_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *TicketStore) Get(ctx context.Context, id string) (*model.Ticket, error) {
	var t model.Ticket
	if err := withDetails(s.db.WithContext(ctx)).Where("id = ?", id).Take(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// TicketInput is the agent-facing create payload.
type TicketInput struct {
	ClientID   string
	ClientName string
	Subject    string
	Channel    model.Channel
	Status     model.TicketStatus
	Priority   model.TicketPriority
	Topic      string
	Messages   []MessageInput
}

// MessageInput is a caller-supplied message. A nil FromClient means the client sent it.
type MessageInput struct {
	Message    string
	FromClient *bool
	Timestamp  time.Time
}

// resolveClient loads the referenced client, mapping a miss to ErrClientNotFound.
func (s *TicketStore) resolveClient(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", errs.ErrClientNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

func (s *TicketStore) Create(ctx context.Context, in TicketInput) (*model.Ticket, error) {
	now := s.now()
	t := &model.Ticket{
		ClientName: strings.TrimSpace(in.ClientName),
		Subject:    strings.TrimSpace(in.Subject),
		Channel:    in.Channel,
		Status:     in.Status,
		Priority:   in.Priority,
		Topic:      in.Topic,
		LastUpdate: model.FormatLastUpdate(now),
		Messages:   prepareMessages(in.Messages, now),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if t.Status == "" {
		t.Status = model.TicketStatusNew
	}
	if t.Priority == "" {
		t.Priority = model.TicketPriorityMedium
	}
	if t.Topic == "" {
		t.Topic = model.TopicGeneral
	}
	if in.ClientID != "" {
		c, err := s.resolveClient(ctx, in.ClientID)
		if err != nil {
			return nil, err
		}
		t.AttachClient(c)
	}
	if err := validateTicket(t); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit("Client").Create(t).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	created, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketCreated, created)
	return created, nil
}

// prepareMessages converts caller messages, stamping missing timestamps.
func prepareMessages(in []MessageInput, now time.Time) []model.Message {
	out := make([]model.Message, 0, len(in))
	for _, m := range in {
		msg := model.Message{
			Message:    strings.TrimSpace(m.Message),
			FromClient: m.FromClient == nil || *m.FromClient,
			Timestamp:  m.Timestamp,
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		out = append(out, msg)
	}
	return out
}

// TicketUpdate is the agent-facing update payload. Nil or empty fields are left unchanged.
// ClientID takes precedence over ClientName; a ClientName alone detaches the client.
type TicketUpdate struct {
	ClientID   *string
	ClientName *string
	Subject    *string
	Topic      *string
	Channel    *model.Channel
	Status     *model.TicketStatus
	Priority   *model.TicketPriority
	// Messages replaces the whole message list.
	Messages *[]MessageInput
}

func (s *TicketStore) Update(ctx context.Context, id string, in TicketUpdate) (*model.Ticket, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case in.ClientID != nil && *in.ClientID != "":
		c, err := s.resolveClient(ctx, *in.ClientID)
		if err != nil {
			return nil, err
		}
		t.AttachClient(c)
	case in.ClientName != nil && strings.TrimSpace(*in.ClientName) != "":
		t.ClientID = nil
		t.Client = nil
		t.ClientName = strings.TrimSpace(*in.ClientName)
	}
	if in.Subject != nil && strings.TrimSpace(*in.Subject) != "" {
		t.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.Topic != nil && *in.Topic != "" {
		t.Topic = *in.Topic
	}
	if in.Channel != nil && *in.Channel != "" {
		t.Channel = *in.Channel
	}
	if in.Status != nil && *in.Status != "" {
		t.Status = *in.Status
	}
	if in.Priority != nil && *in.Priority != "" {
		t.Priority = *in.Priority
	}
	if in.Messages != nil {
		t.Messages = prepareMessages(*in.Messages, now)
	}
	t.LastUpdate = model.FormatLastUpdate(now)
	if err := validateTicket(t); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"client_id":   t.ClientID,
			"client_name": t.ClientName,
			"subject":     t.Subject,
			"topic":       t.Topic,
			"channel":     t.Channel,
			"status":      t.Status,
			"priority":    t.Priority,
			"last_update": t.LastUpdate,
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}
		if in.Messages == nil {
			return nil
		}
		if err := tx.Where("ticket_id = ?", t.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		for i := range t.Messages {
			t.Messages[i].TicketID = t.ID
		}
		if len(t.Messages) == 0 {
			return nil
		}
		return tx.Create(&t.Messages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketUpdated, updated)
	return updated, nil
}

// PatchStatus sets the status directly; any enum value is accepted from any other.
func (s *TicketStore) PatchStatus(ctx context.Context, id string, status model.TicketStatus) (*model.Ticket, error) {
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", errs.ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", errs.ErrValidation, status)
	}
	return s.Update(ctx, id, TicketUpdate{Status: &status})
}

// AddMessage appends a message by ticket id (agent replies and API clients).
func (s *TicketStore) AddMessage(ctx context.Context, id, text string, fromClient bool, topic string) (*model.Ticket, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.AppendMessage(ctx, t, text, fromClient, AppendOptions{Topic: topic}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TicketStore) Delete(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Ticket{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrTicketNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	s.publish(ctx, events.TicketDeleted, t)
	return nil
}
