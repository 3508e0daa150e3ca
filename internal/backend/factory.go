package backend

import (
	"context"
	"errors"
	"fmt"

	"glowbudget/internal/amqp"
	"glowbudget/internal/ledger"
	"glowbudget/internal/log"
	"glowbudget/internal/storage"
	"glowbudget/internal/storage/memory"
)

// Publisher is a change notifier that holds a connection.
type Publisher interface {
	ledger.Notifier
	Close() error
}

// DialFunc connects a Publisher.
type DialFunc func(ctx context.Context, url, exchange, routingKey string, logger *log.Logger) (Publisher, error)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	dial   DialFunc
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		dial: func(ctx context.Context, url, exchange, routingKey string, logger *log.Logger) (Publisher, error) {
			return amqp.Dial(ctx, url, exchange, routingKey, logger)
		},
	}
}

// WithDialer replaces the AMQP dialer.
func (f *DefaultFactory) WithDialer(dial DialFunc) *DefaultFactory {
	f.dial = dial
	return f
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var kv storage.KV
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		kv = repo
	case MemoryBackend:
		if config.SeedDirectory != "" {
			kv = memory.NewFromDir(config.SeedDirectory)
		} else {
			kv = memory.New()
		}
		f.logger.Info("Initialized memory backend", "seed_directory", config.SeedDirectory)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	publisher := f.connectPublisher(ctx, config)

	result := &BackendResult{
		KV: kv,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, kv.Close())
			return errors.Join(errs...)
		},
	}
	if publisher != nil {
		result.Notifier = publisher
	}
	return result, nil
}

// connectPublisher dials AMQP when configured. A broker that cannot be
// reached disables notifications instead of failing start-up.
func (f *DefaultFactory) connectPublisher(ctx context.Context, config Config) Publisher {
	if config.AMQPURL == "" {
		return nil
	}
	publisher, err := f.dial(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey, f.logger)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)
	return publisher
}
