package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/inbound"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClientDirectory stores client identity records. Lookups are exact match on
// whatsapp or email; nothing here enforces uniqueness.
type ClientDirectory struct {
	db *gorm.DB
}

func NewClientDirectory(db *gorm.DB) *ClientDirectory {
	return &ClientDirectory{db: db}
}

// Observation is identity information seen on an inbound message.
type Observation struct {
	Type  model.ContactType
	Value string
	// Name is only applied when the client has none.
	Name string
}

// FindByWhatsapp returns nil, nil when no client has the number.
func (d *ClientDirectory) FindByWhatsapp(ctx context.Context, number string) (*model.Client, error) {
	return d.findOne(ctx, "whatsapp = ?", number)
}

// FindByEmail returns nil, nil when no client has the address.
func (d *ClientDirectory) FindByEmail(ctx context.Context, email string) (*model.Client, error) {
	return d.findOne(ctx, "email = ?", email)
}

func (d *ClientDirectory) findOne(ctx context.Context, query string, value string) (*model.Client, error) {
	if value == "" {
		return nil, nil
	}
	var c model.Client
	err := d.db.WithContext(ctx).Where(query, value).Order("created_at ASC").Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CreateFromWhatsapp registers a client first seen on WhatsApp. The name falls back to the number.
func (d *ClientDirectory) CreateFromWhatsapp(ctx context.Context, number, displayName string) (*model.Client, error) {
	name := displayName
	if name == "" {
		name = number
	}
	c := &model.Client{
		Name:     name,
		Whatsapp: number,
		Phones:   datatypes.NewJSONSlice([]string{number}),
		Contacts: datatypes.NewJSONSlice([]model.Contact{{Type: model.ContactWhatsapp, Value: number}}),
	}
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// CreateFromEmail registers a client first seen by email, named after the address's local part.
func (d *ClientDirectory) CreateFromEmail(ctx context.Context, email string) (*model.Client, error) {
	c := &model.Client{
		Name:     inbound.LocalPart(email),
		Email:    email,
		Phones:   datatypes.NewJSONSlice([]string{}),
		Contacts: datatypes.NewJSONSlice([]model.Contact{{Type: model.ContactEmail, Value: email}}),
	}
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// Enrich merges obs into c and saves only when a field actually changed.
// Existing duplicate phones are left alone; obs.Value is just never appended twice.
func (d *ClientDirectory) Enrich(ctx context.Context, c *model.Client, obs Observation) (bool, error) {
	if obs.Value == "" {
		return false, nil
	}
	changed := false
	if obs.Name != "" && c.Name == "" {
		c.Name = obs.Name
		changed = true
	}
	if obs.Type == model.ContactWhatsapp || obs.Type == model.ContactPhone {
		if !c.HasPhone(obs.Value) {
			c.Phones = append(c.Phones, obs.Value)
			changed = true
		}
	}
	if !c.HasContact(obs.Type, obs.Value) {
		c.Contacts = append(c.Contacts, model.Contact{Type: obs.Type, Value: obs.Value})
		changed = true
	}
	switch obs.Type {
	case model.ContactWhatsapp:
		if c.Whatsapp == "" {
			c.Whatsapp = obs.Value
			changed = true
		}
	case model.ContactEmail:
		if c.Email == "" {
			c.Email = obs.Value
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	if err := d.db.WithContext(ctx).Save(c).Error; err != nil {
		return false, fmt.Errorf("save client %s: %w", c.ID, err)
	}
	return true, nil
}

func (d *ClientDirectory) List(ctx context.Context) ([]model.Client, error) {
	var items []model.Client
	if err := d.db.WithContext(ctx).Order("updated_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (d *ClientDirectory) Get(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ClientInput carries agent-supplied client fields. Nil pointers leave a field unchanged.
type ClientInput struct {
	Name     *string
	Email    *string
	Whatsapp *string
	Phones   *[]string
	Contacts *[]model.Contact
	Notes    *string
}

func (in ClientInput) apply(c *model.Client) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Whatsapp != nil {
		c.Whatsapp = inbound.StripChannelPrefix(*in.Whatsapp)
	}
	if in.Phones != nil {
		c.Phones = datatypes.NewJSONSlice(append([]string{}, *in.Phones...))
	}
	if in.Contacts != nil {
		for _, ct := range *in.Contacts {
			if !ct.Type.Valid() || ct.Value == "" {
				return fmt.Errorf("%w: invalid contact %q=%q", errs.ErrValidation, ct.Type, ct.Value)
			}
		}
		c.Contacts = datatypes.NewJSONSlice(append([]model.Contact{}, *in.Contacts...))
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if c.Phones == nil {
		c.Phones = datatypes.NewJSONSlice([]string{})
	}
	if c.Contacts == nil {
		c.Contacts = datatypes.NewJSONSlice([]model.Contact{})
	}
	return nil
}

// Create stores a client entered by an agent. Primary identifiers are mirrored into contacts.
func (d *ClientDirectory) Create(ctx context.Context, in ClientInput) (*model.Client, error) {
	c := &model.Client{}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if c.Name == "" && c.Email == "" && c.Whatsapp == "" {
		return nil, fmt.Errorf("%w: name, email or whatsapp is required", errs.ErrValidation)
	}
	if c.Whatsapp != "" {
		if !c.HasPhone(c.Whatsapp) {
			c.Phones = append(c.Phones, c.Whatsapp)
		}
		if !c.HasContact(model.ContactWhatsapp, c.Whatsapp) {
			c.Contacts = append(c.Contacts, model.Contact{Type: model.ContactWhatsapp, Value: c.Whatsapp})
		}
	}
	if c.Email != "" && !c.HasContact(model.ContactEmail, c.Email) {
		c.Contacts = append(c.Contacts, model.Contact{Type: model.ContactEmail, Value: c.Email})
	}
	if err := d.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func (d *ClientDirectory) Update(ctx context.Context, id string, in ClientInput) (*model.Client, error) {
	c, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := d.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fmt.Errorf("save client %s: %w", id, err)
	}
	return c, nil
}

// Delete removes a client. Tickets only hold a weak reference, so they are
// detached and keep their denormalized clientName.
func (d *ClientDirectory) Delete(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ticket{}).Where("client_id = ?", id).Update("client_id", nil).Error; err != nil {
			return fmt.Errorf("detach tickets: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Client{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrClientNotFound
		}
		return nil
	})
}
