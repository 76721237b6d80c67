// Package archive exports resolved tickets to object storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// TicketSource is the slice of the ticket store the archiver needs.
type TicketSource interface {
	ResolvedBefore(ctx context.Context, cutoff time.Time) ([]model.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type Archiver struct {
	source   TicketSource
	uploader Uploader
	prefix   string
}

func NewArchiver(source TicketSource, uploader Uploader, prefix string) *Archiver {
	if prefix == "" {
		prefix = "tickets"
	}
	return &Archiver{source: source, uploader: uploader, prefix: prefix}
}

// Key is the object key for a ticket, partitioned by the day it was last updated.
func (a *Archiver) Key(t *model.Ticket) string {
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, t.UpdatedAt.UTC().Format("2006/01/02"), t.ID)
}

// Run uploads every ticket resolved before cutoff and, with deleteAfter, removes
// each one once its upload succeeded. It stops at the first failure and returns
// how many tickets were archived until then.
func (a *Archiver) Run(ctx context.Context, cutoff time.Time, deleteAfter bool) (int, error) {
	tickets, err := a.source.ResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive: list resolved tickets: %w", err)
	}
	archived := 0
	for i := range tickets {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		t := &tickets[i]
		body, err := json.Marshal(t)
		if err != nil {
			return archived, fmt.Errorf("archive: marshal ticket %s: %w", t.ID, err)
		}
		key := a.Key(t)
		if err := a.uploader.Upload(ctx, key, body, "application/json"); err != nil {
			return archived, fmt.Errorf("archive: upload ticket %s: %w", t.ID, err)
		}
		if deleteAfter {
			if err := a.source.Delete(ctx, t.ID); err != nil {
				return archived, fmt.Errorf("archive: delete ticket %s: %w", t.ID, err)
			}
		}
		archived++
		log.Debug().Str("ticket_id", t.ID).Str("key", key).Bool("deleted", deleteAfter).Msg("archive: ticket archived")
	}
	log.Info().Int("archived", archived).Time("cutoff", cutoff).Msg("archive: run finished")
	return archived, nil
}
