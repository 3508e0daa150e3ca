package backend

import (
	"errors"
	"fmt"

	"glowbudget/internal/config"
)

// BackendType names a storage implementation.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	return bt == SQLiteBackend || bt == MemoryBackend
}

// Config selects the ledger's storage and the optional change publisher.
type Config struct {
	Type BackendType

	SQLiteDBPath  string
	SeedDirectory string // memory only; empty starts with no data

	// Notifications are enabled by a non-empty AMQPURL, whatever the storage.
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// FromAppConfig picks the backend settings out of the process config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("backend: nil app config")
	}
	cfg := Config{
		Type:           BackendType(app.DataBackend),
		SQLiteDBPath:   app.SQLiteDBPath,
		SeedDirectory:  app.MemorySeedDir,
		AMQPURL:        app.AMQPURL,
		AMQPExchange:   app.AMQPExchange,
		AMQPRoutingKey: app.AMQPRoutingKey,
	}
	if !cfg.Type.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown type %q", app.DataBackend)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if !c.Type.IsValid() {
		errs = append(errs, fmt.Errorf("unknown backend type %q", c.Type))
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		errs = append(errs, errors.New("sqlite backend needs a database path"))
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPRoutingKey == "") {
		errs = append(errs, errors.New("AMQP exchange and routing key are required when AMQP URL is set"))
	}
	return errors.Join(errs...)
}
