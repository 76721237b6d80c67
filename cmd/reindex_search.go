package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/database"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/kafka"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/logging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/searchindex"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
)

const reindexPageSize = 100

var reindexSearchCmd = &cobra.Command{
	Use:   "reindex-search",
	Short: "Republish every ticket for search indexing. Prefers Kafka; falls back to HTTP if SEARCH_SERVICE_URL is set.",
	RunE:  runReindexSearch,
}

func init() {
	rootCmd.AddCommand(reindexSearchCmd)
}

func runReindexSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	defer producer.Close()
	search := searchindex.NewClient(cfg.SearchServiceURL)
	if !producer.Enabled() && !search.Enabled() {
		log.Warn().Msg("reindex-search: neither KAFKA_BROKERS nor SEARCH_SERVICE_URL set, nothing to do")
		return nil
	}

	conn, err := database.Open(cfg.DSN(), logging.GormLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(conn)
	store := service.NewTicketStore(conn, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sent, failed := 0, 0
	for offset := 0; ; offset += reindexPageSize {
		page, total, err := store.List(ctx, service.ListFilter{Limit: reindexPageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list tickets: %w", err)
		}
		for i := range page {
			if err := reindexTicket(ctx, producer, search, &page[i]); err != nil {
				failed++
				continue
			}
			sent++
		}
		log.Info().Int("sent", sent).Int("failed", failed).Int64("total", total).Msg("reindex-search: progress")
		if len(page) < reindexPageSize {
			break
		}
	}
	log.Info().Int("sent", sent).Int("failed", failed).Bool("kafka", producer.Enabled()).Msg("reindex-search: done")
	return nil
}

// reindexTicket prefers Kafka, where the search worker picks the event up.
func reindexTicket(ctx context.Context, producer *kafka.Producer, search *searchindex.Client, t *model.Ticket) error {
	if producer.Enabled() {
		ev := events.New(events.TicketUpdated, t, time.Now())
		producer.ProduceTicketEvent(ctx, t.ID, events.Payload(ev))
		return nil
	}
	return search.IndexTicket(ctx, t)
}
