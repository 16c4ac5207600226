package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	MatchStarted  = "match_started"
	MoveCommitted = "move_committed"
	GameOver      = "game_over"
)

// Event is the envelope written to the topic and read back by the consumer.
type Event struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer returns nil when analytics is not configured. A nil *Producer
// is safe to publish to.
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	p := &Producer{log: log.With().Str("topic", topic).Logger()}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		// Moves are published from the game goroutine; never block it on the broker.
		Async: true,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				p.log.Warn().Err(err).Msg("kafka publish failed")
			}
		},
	}
	return p
}

// Publish keys the message by match so one match's events stay ordered.
func (p *Producer) Publish(ctx context.Context, event, matchID string, payload map[string]any) {
	if p == nil || p.writer == nil {
		return
	}
	data, err := Encode(event, payload, time.Now().UTC())
	if err != nil {
		p.log.Warn().Err(err).Str("event", event).Msg("encode analytics event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(matchID), Value: data}); err != nil {
		p.log.Warn().Err(err).Str("event", event).Msg("kafka publish failed")
	}
}

func (p *Producer) Close() {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close kafka writer")
	}
}

func Encode(event string, payload map[string]any, at time.Time) ([]byte, error) {
	return json.Marshal(Event{Event: event, Payload: payload, Timestamp: at})
}

func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
