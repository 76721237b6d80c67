package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/archive"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/database"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/kafka"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/logging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/searchindex"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
)

var archiveFlags struct {
	olderThan time.Duration
	delete    bool
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy resolved tickets to S3 as JSON, optionally deleting them afterwards",
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().DurationVar(&archiveFlags.olderThan, "older-than", 30*24*time.Hour, "archive tickets resolved and untouched for at least this long")
	archiveCmd.Flags().BoolVar(&archiveFlags.delete, "delete", false, "delete tickets once uploaded")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if archiveFlags.olderThan <= 0 {
		return fmt.Errorf("archive: --older-than must be positive")
	}
	uploader, err := archive.NewS3Uploader(archive.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})
	if err != nil {
		return err
	}

	conn, err := database.Open(cfg.DSN(), logging.GormLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close(conn)

	// Deletions still reach Kafka and search so the index drops archived tickets.
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	defer producer.Close()
	search := searchindex.NewClient(cfg.SearchServiceURL)
	defer search.Wait()
	store := service.NewTicketStore(conn, events.Fanout{producer, search})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cutoff := time.Now().Add(-archiveFlags.olderThan)
	n, err := archive.NewArchiver(store, uploader, "").Run(ctx, cutoff, archiveFlags.delete)
	if err != nil {
		return err
	}
	log.Info().Int("archived", n).Str("bucket", cfg.S3.Bucket).Bool("deleted", archiveFlags.delete).Msg("archive: done")
	return nil
}
