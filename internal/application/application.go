package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/config"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/database"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/handler"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/idempotency"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/kafka"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/logging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/messaging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/router"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/searchindex"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/ws"
	"gorm.io/gorm"
)

const dedupeKeyPrefix = "contacthub:whatsapp:sid:"

// API is the HTTP server with everything it owns.
type API struct {
	cfg      *config.Config
	db       *gorm.DB
	httpSrv  *http.Server
	producer *kafka.Producer
	search   *searchindex.Client
	hub      *ws.Hub
	redis    *redis.Client
}

// NewAPI migrates the database and wires stores, publishers and handlers.
func NewAPI(ctx context.Context, cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN(), logging.GormLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	search := searchindex.NewClient(cfg.SearchServiceURL)
	hub := ws.NewHub(cfg.CORSOrigins)
	publisher := events.Fanout{producer, search, hub}

	clients := service.NewClientDirectory(db)
	tickets := service.NewTicketStore(db, publisher)
	reconciler := service.NewReconciler(clients, tickets)

	sender := messaging.New(messaging.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.WhatsappNumber,
		BaseURL:    cfg.Twilio.APIURL,
	})

	rdb := idempotency.Connect(ctx, cfg.RedisURL)
	var guard idempotency.Guard
	if rdb != nil {
		guard = idempotency.NewRedisGuard(rdb, dedupeKeyPrefix, cfg.WebhookDedupeTTL)
	}

	h := router.New(router.Deps{
		DB:           db,
		Tickets:      handler.NewTicketHandler(tickets),
		Clients:      handler.NewClientHandler(clients, tickets),
		Integrations: handler.NewIntegrationHandler(reconciler, tickets, sender, guard),
		Hub:          hub,
		CORSOrigins:  cfg.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:      cfg,
		db:       db,
		httpSrv:  httpSrv,
		producer: producer,
		search:   search,
		hub:      hub,
		redis:    rdb,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Info().
		Str("addr", a.httpSrv.Addr).
		Str("swagger", base+"/swagger").
		Str("health", base+"/health").
		Str("api", base+"/api/").
		Str("ws", "ws://"+host+":"+a.cfg.HTTPPort+"/ws").
		Bool("kafka", a.producer.Enabled()).
		Bool("dedupe", a.redis != nil).
		Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("http shutdown: %w", err)
	}
	a.hub.Close()
	if err := a.producer.Close(); err != nil {
		log.Warn().Err(err).Msg("kafka: close producer")
	}
	a.search.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("database: close")
	}
	log.Info().Msg("http server stopped")
	return serveErr
}
