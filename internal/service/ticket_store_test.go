package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/testutil"
)

func TestCreateTicketDefaults(t *testing.T) {
	f := newFixture(t)
	tk, err := f.tickets.CreateTicket(context.Background(), NewTicket{
		ClientName:     "+5511999990000",
		Channel:        model.ChannelWhatsapp,
		InitialMessage: "Olá, preciso de ajuda",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.Subject != "Mensagem WhatsApp de +5511999990000" {
		t.Errorf("Subject = %q", tk.Subject)
	}
	if tk.Topic != model.TopicGeneral {
		t.Errorf("Topic = %q, want geral", tk.Topic)
	}
	if tk.Status != model.TicketStatusNew || tk.Priority != model.TicketPriorityMedium {
		t.Errorf("Status/Priority = %s/%s, want novo/media", tk.Status, tk.Priority)
	}
	if tk.LastUpdate != "2026-03-01T12:00:01.000Z" {
		t.Errorf("LastUpdate = %q", tk.LastUpdate)
	}
	if len(tk.Messages) != 1 || !tk.Messages[0].FromClient || tk.Messages[0].ID == 0 {
		t.Fatalf("Messages = %+v", tk.Messages)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.TicketCreated {
		t.Errorf("events = %v, want [ticket.created]", got)
	}
}

func TestCreateTicketRejectsMissingName(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.CreateTicket(context.Background(), NewTicket{
		Subject:        "sem nome",
		Channel:        model.ChannelChat,
		InitialMessage: "oi",
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAppendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.tickets.CreateTicket(ctx, NewTicket{
		ClientName:     "Maria",
		Channel:        model.ChannelWhatsapp,
		Topic:          "whatsapp",
		InitialMessage: "primeira",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := f.tickets.AppendMessage(ctx, tk, "  segunda  ", true, AppendOptions{}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if tk.Topic != model.TopicGeneral {
		t.Errorf("Topic = %q, want placeholder replaced by geral", tk.Topic)
	}

	got, err := f.tickets.Get(ctx, tk.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[0].Message != "primeira" || got.Messages[1].Message != "segunda" {
		t.Errorf("messages out of order: %q, %q", got.Messages[0].Message, got.Messages[1].Message)
	}
	if got.LastUpdate != "2026-03-01T12:00:03.000Z" {
		t.Errorf("LastUpdate = %q", got.LastUpdate)
	}
	if got.Topic != model.TopicGeneral {
		t.Errorf("stored Topic = %q", got.Topic)
	}

	if err := f.tickets.AppendMessage(ctx, tk, "   ", true, AppendOptions{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty append err = %v, want ErrValidation", err)
	}
	if n := testutil.Count(t, f.db, &model.Message{}); n != 2 {
		t.Fatalf("messages stored = %d, want 2", n)
	}
	want := []events.Type{events.TicketCreated, events.TicketMessageAdded}
	if got := f.events.types(); len(got) != 2 || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestFindOpenTicketSkipsResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.clients.CreateFromWhatsapp(ctx, "+5511999990000", "Maria")
	tk, err := f.tickets.CreateTicket(ctx, NewTicket{Client: c, Channel: model.ChannelWhatsapp, InitialMessage: "oi"})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	open, err := f.tickets.FindOpenTicket(ctx, c, model.ChannelWhatsapp, "")
	if err != nil || open == nil || open.ID != tk.ID {
		t.Fatalf("FindOpenTicket = %v, %v; want %s", open, err, tk.ID)
	}
	if other, _ := f.tickets.FindOpenTicket(ctx, c, model.ChannelEmail, ""); other != nil {
		t.Fatalf("FindOpenTicket on email matched %s", other.ID)
	}

	if _, err := f.tickets.PatchStatus(ctx, tk.ID, model.TicketStatusResolved); err != nil {
		t.Fatalf("PatchStatus: %v", err)
	}
	open, err = f.tickets.FindOpenTicket(ctx, c, model.ChannelWhatsapp, "")
	if err != nil {
		t.Fatalf("FindOpenTicket: %v", err)
	}
	if open != nil {
		t.Fatalf("FindOpenTicket returned resolved ticket %s", open.ID)
	}
}

func TestFindOpenTicketAdoptsLegacyTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy, err := f.tickets.CreateTicket(ctx, NewTicket{
		ClientName:     "+5511999990000",
		Channel:        model.ChannelWhatsapp,
		InitialMessage: "antes do cadastro",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	c, _ := f.clients.CreateFromWhatsapp(ctx, "+5511999990000", "Maria")

	tk, err := f.tickets.FindOpenTicket(ctx, c, model.ChannelWhatsapp, "+5511999990000")
	if err != nil || tk == nil {
		t.Fatalf("FindOpenTicket = %v, %v", tk, err)
	}
	if tk.ID != legacy.ID || tk.ClientID == nil || *tk.ClientID != c.ID {
		t.Fatalf("ticket not adopted: %+v", tk)
	}
	if err := f.tickets.AppendMessage(ctx, tk, "depois", true, AppendOptions{}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	got, _ := f.tickets.Get(ctx, legacy.ID)
	if got.ClientID == nil || *got.ClientID != c.ID {
		t.Fatalf("stored ClientID = %v, want %s", got.ClientID, c.ID)
	}
	if got.ClientName != "Maria" {
		t.Errorf("ClientName = %q, want Maria", got.ClientName)
	}
}

func TestFindOpenTicketBySubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.clients.CreateFromEmail(ctx, "ana@example.com")
	tk, err := f.tickets.CreateTicket(ctx, NewTicket{
		Client:         c,
		Subject:        "Fatura",
		Channel:        model.ChannelEmail,
		InitialMessage: "segunda via",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if tk.Topic != model.TopicSupport {
		t.Errorf("Topic = %q, want suporte", tk.Topic)
	}
	got, err := f.tickets.FindOpenTicketBySubject(ctx, c, c.Email, "Fatura", model.ChannelEmail)
	if err != nil || got == nil || got.ID != tk.ID {
		t.Fatalf("FindOpenTicketBySubject = %v, %v", got, err)
	}
	if got, _ := f.tickets.FindOpenTicketBySubject(ctx, c, c.Email, "Entrega", model.ChannelEmail); got != nil {
		t.Fatalf("other subject matched %s", got.ID)
	}
	if got, _ := f.tickets.FindOpenTicketBySubject(ctx, nil, "ana@example.com", "Fatura", model.ChannelEmail); got != nil {
		t.Fatalf("raw sender matched ticket named %q", got.ClientName)
	}
}

func TestCreateAgentTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.clients.CreateFromEmail(ctx, "ana@example.com")

	tk, err := f.tickets.Create(ctx, TicketInput{
		ClientID: c.ID,
		Subject:  "Retorno",
		Channel:  model.ChannelChat,
		Messages: []MessageInput{{Message: "ligar amanhã"}, {Message: "retornar", FromClient: boolPtr(false)}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.ClientName != "ana" || tk.Client == nil || tk.Client.ID != c.ID {
		t.Errorf("client not attached: name=%q client=%v", tk.ClientName, tk.Client)
	}
	if tk.Status != model.TicketStatusNew || tk.Priority != model.TicketPriorityMedium || tk.Topic != model.TopicGeneral {
		t.Errorf("defaults = %s/%s/%s", tk.Status, tk.Priority, tk.Topic)
	}
	if len(tk.Messages) != 2 || !tk.Messages[0].FromClient || tk.Messages[1].FromClient {
		t.Errorf("Messages = %+v; want fromClient defaulting to true", tk.Messages)
	}
}

func TestCreateAgentTicketErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, TicketInput{ClientID: "00000000-0000-0000-0000-000000000000", Subject: "x", Channel: model.ChannelChat})
	if !errors.Is(err, errs.ErrClientNotFound) {
		t.Fatalf("unknown client err = %v, want ErrClientNotFound", err)
	}
	_, err = f.tickets.Create(ctx, TicketInput{ClientName: "Ana", Subject: "x", Channel: "fax"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bad channel err = %v, want ErrValidation", err)
	}
	_, err = f.tickets.Create(ctx, TicketInput{ClientName: "Ana", Subject: "x", Channel: model.ChannelChat, Status: "fechado"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bad status err = %v, want ErrValidation", err)
	}
	if n := testutil.Count(t, f.db, &model.Ticket{}); n != 0 {
		t.Fatalf("tickets = %d, want 0", n)
	}
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.tickets.Create(ctx, TicketInput{
		ClientName: "Ana",
		Subject:    "Retorno",
		Channel:    model.ChannelChat,
		Messages:   []MessageInput{{Message: "a"}, {Message: "b"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	high := model.TicketPriorityHigh
	msgs := []MessageInput{{Message: "resumo", FromClient: boolPtr(true)}}
	got, err := f.tickets.Update(ctx, tk.ID, TicketUpdate{
		Subject:  strPtr("Retorno urgente"),
		Priority: &high,
		Messages: &msgs,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Subject != "Retorno urgente" || got.Priority != high {
		t.Errorf("Update = %s/%s", got.Subject, got.Priority)
	}
	if got.Status != model.TicketStatusNew || got.ClientName != "Ana" {
		t.Errorf("unchanged fields modified: %s/%s", got.Status, got.ClientName)
	}
	if len(got.Messages) != 1 || got.Messages[0].Message != "resumo" {
		t.Errorf("Messages = %+v", got.Messages)
	}
	if n := testutil.Count(t, f.db, &model.Message{}); n != 1 {
		t.Errorf("messages stored = %d, want 1", n)
	}

	if _, err := f.tickets.Update(ctx, "00000000-0000-0000-0000-000000000000", TicketUpdate{}); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("Update missing err = %v, want ErrTicketNotFound", err)
	}
	empty := model.TicketStatus("")
	got, err = f.tickets.Update(ctx, tk.ID, TicketUpdate{Subject: strPtr(""), Status: &empty})
	if err != nil {
		t.Fatalf("Update with empty fields: %v", err)
	}
	if got.Subject != "Retorno urgente" || got.Status != model.TicketStatusNew {
		t.Errorf("empty fields overwrote ticket: %q/%s", got.Subject, got.Status)
	}

	bad := model.TicketPriority("urgente")
	if _, err := f.tickets.Update(ctx, tk.ID, TicketUpdate{Priority: &bad}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Update bad priority err = %v, want ErrValidation", err)
	}
}

func TestPatchStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, _ := f.tickets.Create(ctx, TicketInput{ClientName: "Ana", Subject: "x", Channel: model.ChannelChat})

	for _, st := range []model.TicketStatus{model.TicketStatusResolved, model.TicketStatusNew, model.TicketStatusInProgress} {
		got, err := f.tickets.PatchStatus(ctx, tk.ID, st)
		if err != nil {
			t.Fatalf("PatchStatus(%s): %v", st, err)
		}
		if got.Status != st {
			t.Fatalf("Status = %s, want %s", got.Status, st)
		}
	}
	if _, err := f.tickets.PatchStatus(ctx, tk.ID, ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty status err = %v, want ErrValidation", err)
	}
	if _, err := f.tickets.PatchStatus(ctx, tk.ID, "fechado"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("invalid status err = %v, want ErrValidation", err)
	}
	if _, err := f.tickets.PatchStatus(ctx, "00000000-0000-0000-0000-000000000000", model.TicketStatusNew); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("missing ticket err = %v, want ErrTicketNotFound", err)
	}
}

func TestAddMessageOverridesTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, _ := f.tickets.Create(ctx, TicketInput{ClientName: "Ana", Subject: "x", Channel: model.ChannelChat})

	got, err := f.tickets.AddMessage(ctx, tk.ID, "resposta do agente", false, "financeiro")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if got.Topic != "financeiro" {
		t.Errorf("Topic = %q, want financeiro", got.Topic)
	}
	if n := len(got.Messages); n != 1 || got.Messages[0].FromClient {
		t.Errorf("Messages = %+v", got.Messages)
	}
	if _, err := f.tickets.AddMessage(ctx, "00000000-0000-0000-0000-000000000000", "x", false, ""); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("missing ticket err = %v, want ErrTicketNotFound", err)
	}
}

func TestDeleteTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, _ := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "Ana", Channel: model.ChannelChat, InitialMessage: "oi"})

	if err := f.tickets.Delete(ctx, tk.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.tickets.Get(ctx, tk.ID); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrTicketNotFound", err)
	}
	if n := testutil.Count(t, f.db, &model.Message{}); n != 0 {
		t.Fatalf("messages left = %d, want 0", n)
	}
	if err := f.tickets.Delete(ctx, tk.ID); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("second Delete err = %v, want ErrTicketNotFound", err)
	}
	got := f.events.types()
	if got[len(got)-1] != events.TicketDeleted {
		t.Errorf("last event = %s, want ticket.deleted", got[len(got)-1])
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, ch := range []model.Channel{model.ChannelWhatsapp, model.ChannelEmail, model.ChannelWhatsapp} {
		if _, err := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "Ana", Channel: ch, InitialMessage: "oi"}); err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
	}

	items, total, err := f.tickets.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("List = %d items, total %d; want 3, 3", len(items), total)
	}
	if !items[0].UpdatedAt.After(items[2].UpdatedAt) {
		t.Errorf("List not ordered newest first")
	}

	items, total, err = f.tickets.List(ctx, ListFilter{Channel: model.ChannelWhatsapp, Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 1 || items[0].Channel != model.ChannelWhatsapp {
		t.Fatalf("filtered List = %d items, total %d", len(items), total)
	}
}

func TestListByClientIncludesLegacyTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "+5511999990000", Channel: model.ChannelWhatsapp, InitialMessage: "antigo"}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "outra pessoa", Channel: model.ChannelWhatsapp, InitialMessage: "x"}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	c, _ := f.clients.CreateFromWhatsapp(ctx, "+5511999990000", "Maria")
	if _, err := f.tickets.CreateTicket(ctx, NewTicket{Client: c, Channel: model.ChannelEmail, Subject: "s", InitialMessage: "novo"}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	items, err := f.tickets.ListByClient(ctx, c)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListByClient = %d tickets, want 2", len(items))
	}
}

func TestResolvedBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, _ := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "Ana", Channel: model.ChannelChat, InitialMessage: "a"})
	if _, err := f.tickets.PatchStatus(ctx, old.ID, model.TicketStatusResolved); err != nil {
		t.Fatalf("PatchStatus: %v", err)
	}
	if _, err := f.tickets.CreateTicket(ctx, NewTicket{ClientName: "Bia", Channel: model.ChannelChat, InitialMessage: "b"}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	items, err := f.tickets.ResolvedBefore(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ResolvedBefore: %v", err)
	}
	if len(items) != 1 || items[0].ID != old.ID {
		t.Fatalf("ResolvedBefore = %d tickets, want only %s", len(items), old.ID)
	}
	items, _ = f.tickets.ResolvedBefore(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if len(items) != 0 {
		t.Fatalf("ResolvedBefore earlier cutoff = %d tickets, want 0", len(items))
	}
}
