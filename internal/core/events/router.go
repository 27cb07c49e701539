package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/rs/zerolog"
)

// DeadLetterFunc is invoked once an event has exhausted its delivery attempts
type DeadLetterFunc func(ctx context.Context, event workflow.DomainEvent, reason string)

// LogDeadLetter returns a DeadLetterFunc that records the event at error level
func LogDeadLetter(logger zerolog.Logger) DeadLetterFunc {
	return func(_ context.Context, event workflow.DomainEvent, reason string) {
		logger.Error().
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Str("subject", event.Subject.String()).
			Str("reason", reason).
			Msg("domain event dead-lettered")
	}
}

// RouterConfig controls delivery of domain events to the engine
type RouterConfig struct {
	Topic           string
	DeadLetterTopic string
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// NewRouter builds a watermill router that delivers events from cfg.Topic to
// listener. Failed messages are retried with exponential backoff and then
// moved to cfg.DeadLetterTopic, whose consumer calls deadLetter.
func NewRouter(
	cfg RouterConfig,
	subscriber message.Subscriber,
	publisher message.Publisher,
	listener *Listener,
	deadLetter DeadLetterFunc,
	logger zerolog.Logger,
) (*message.Router, error) {
	wmLogger := NewLoggerAdapter(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	poisonQueue, err := middleware.PoisonQueue(publisher, cfg.DeadLetterTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue: %w", err)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialBackoff,
		MaxInterval:     cfg.MaxBackoff,
		Multiplier:      2,
		Logger:          wmLogger,
	}

	handler := router.AddNoPublisherHandler("workflow-engine", cfg.Topic, subscriber, listener.HandleMessage)
	// outermost first: exhausted retries land in the poison queue, panics become errors
	handler.AddMiddleware(poisonQueue, retry.Middleware, middleware.Recoverer)

	router.AddNoPublisherHandler("dead-letter", cfg.DeadLetterTopic, subscriber, deadLetterHandler(deadLetter, logger))

	return router, nil
}

func deadLetterHandler(deadLetter DeadLetterFunc, logger zerolog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
		event, err := Decode(msg)
		if err != nil {
			logger.Error().Err(err).
				Str("message_uuid", msg.UUID).
				Str("reason", reason).
				Msg("undecodable message dead-lettered")
			return nil
		}
		if deadLetter != nil {
			deadLetter(MessageContext(msg), event, reason)
		}
		return nil
	}
}

// RouterDefaults fills zero values of cfg
func RouterDefaults(cfg RouterConfig) RouterConfig {
	if cfg.Topic == "" {
		cfg.Topic = "fleet.domain-events"
	}
	if cfg.DeadLetterTopic == "" {
		cfg.DeadLetterTopic = cfg.Topic + ".dead-letter"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return cfg
}
