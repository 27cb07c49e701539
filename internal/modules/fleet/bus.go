package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/jobs"
	"github.com/fleettrack/telematics-be/internal/shared/config"
)

// BusOptions selects and configures the delivery layer between producers
// and the workflow engine
type BusOptions struct {
	Kind        string
	Router      events.RouterConfig
	Worker      jobs.WorkerConfig
	Brokers     []string
	ServiceName string
	OTelEnabled bool
}

// Bus carries domain events from producers to the engine with at-least-once
// delivery. The memory and kafka drivers use a watermill router; the database
// driver uses the job queue.
type Bus struct {
	kind       string
	opts       BusOptions
	Publisher  events.Publisher
	subscriber message.Subscriber
	wmPub      message.Publisher
	jobs       *jobs.Service
	closers    []func() error
	logger     zerolog.Logger
}

func OpenBus(opts BusOptions, db *gorm.DB, logger zerolog.Logger) (*Bus, error) {
	opts.Router = events.RouterDefaults(opts.Router)
	b := &Bus{kind: opts.Kind, opts: opts, logger: logger}
	wmLogger := events.NewLoggerAdapter(logger)

	switch opts.Kind {
	case config.BusMemory, "":
		b.kind = config.BusMemory
		channel := events.NewGoChannel(wmLogger, false)
		b.subscriber, b.wmPub = channel, channel
		b.closers = append(b.closers, channel.Close)

	case config.BusKafka:
		pub, sub, err := events.NewKafkaChannel(wmLogger, opts.Brokers, opts.ServiceName, opts.OTelEnabled)
		if err != nil {
			return nil, fmt.Errorf("open kafka bus: %w", err)
		}
		b.subscriber, b.wmPub = sub, pub
		b.closers = append(b.closers, sub.Close, pub.Close)

	case config.BusDatabase:
		if db == nil {
			return nil, errors.New("database bus needs a database connection")
		}
		b.jobs = jobs.NewService(db, logger.With().Str("component", "jobs").Logger())
		b.Publisher = jobs.NewEventPublisher(b.jobs.Queue(), opts.Router.MaxRetries)
		return b, nil

	default:
		return nil, fmt.Errorf("unknown event bus %q (use memory, kafka or database)", opts.Kind)
	}

	b.Publisher = events.NewWatermillPublisher(b.wmPub, opts.Router.Topic)
	return b, nil
}

func (b *Bus) Kind() string { return b.kind }

// Jobs returns the job service of the database driver, or nil
func (b *Bus) Jobs() *jobs.Service { return b.jobs }

// Run delivers events to listener until ctx is cancelled. Events that keep
// failing are handed to deadLetter.
func (b *Bus) Run(ctx context.Context, listener *events.Listener, deadLetter events.DeadLetterFunc) error {
	if b.jobs != nil {
		worker := b.jobs.RegisterWorker(b.workerConfig(), jobs.NewEventHandler(listener))
		worker.OnExhausted(jobs.DeadLetter(deadLetter))
		if err := b.jobs.StartWorkers(ctx); err != nil {
			return fmt.Errorf("start job workers: %w", err)
		}
		<-ctx.Done()
		b.jobs.StopWorkers()
		b.jobs.WaitForWorkers()
		return nil
	}

	router, err := events.NewRouter(b.opts.Router, b.subscriber, b.wmPub, listener, deadLetter, b.logger)
	if err != nil {
		return err
	}
	return router.Run(ctx)
}

func (b *Bus) workerConfig() jobs.WorkerConfig {
	cfg := b.opts.Worker
	cfg.Queue = jobs.EventQueue
	return cfg
}

func (b *Bus) Close() error {
	var errs []error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BusOptionsFromConfig maps the delivery settings of cfg
func BusOptionsFromConfig(cfg *config.Config) BusOptions {
	worker := jobs.DefaultWorkerConfig()
	if cfg.WorkerConcurrency > 0 {
		worker.Concurrency = cfg.WorkerConcurrency
	}

	return BusOptions{
		Kind: cfg.EventBus,
		Router: events.RouterConfig{
			Topic:           cfg.EventTopic,
			DeadLetterTopic: cfg.DeadLetterTopic,
			MaxRetries:      cfg.DeliveryMaxRetries,
			InitialBackoff:  cfg.DeliveryInitialBackoff,
		},
		Worker:      worker,
		Brokers:     cfg.KafkaBrokers,
		ServiceName: cfg.OTelServiceName,
		OTelEnabled: cfg.OTelEnabled,
	}
}
