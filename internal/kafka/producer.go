package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
)

const writeTimeout = 5 * time.Second

// Producer writes ticket events to a Kafka topic (best-effort, never blocks the API).
type Producer struct {
	writer   *kafka.Writer
	topic    string
	inflight sync.WaitGroup
}

// NewProducer creates a producer. With no brokers or no topic every method is a no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish hands the event to a goroutine with its own timeout, so it still goes
// out when the request context is cancelled.
func (p *Producer) Publish(_ context.Context, ev events.Event) {
	if !p.Enabled() {
		return
	}
	payload := events.Payload(ev)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		p.ProduceTicketEvent(ctx, ev.Ticket.ID, payload)
	}()
}

// ProduceTicketEvent writes one event keyed by ticket id so a ticket's events keep their order.
func (p *Producer) ProduceTicketEvent(ctx context.Context, key string, payload map[string]interface{}) {
	if !p.Enabled() {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("kafka: marshal ticket event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body}); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("kafka: write ticket event")
	}
}

// Close waits for published events still in flight, then closes the writer.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	p.inflight.Wait()
	return p.writer.Close()
}
