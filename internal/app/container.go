package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"github.com/nerrad567/nodebus/internal/command"
	"github.com/nerrad567/nodebus/internal/infrastructure/config"
	"github.com/nerrad567/nodebus/internal/infrastructure/influxdb"
	"github.com/nerrad567/nodebus/internal/infrastructure/logging"
	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
	"github.com/nerrad567/nodebus/internal/pool"
	"github.com/nerrad567/nodebus/internal/receiver"
	"github.com/nerrad567/nodebus/internal/state"
)

// historySink wraps the optional InfluxDB client; Client is nil when
// InfluxDB is disabled.
type historySink struct{ *influxdb.Client }

// newContainer registers every constructor. Nothing is built until Invoke.
func newContainer(ctx context.Context, opts Options) (*dig.Container, error) {
	c := dig.New()

	providers := []any{
		func() context.Context { return ctx },
		func() *config.Config { return opts.Config },
		func() *logging.Logger { return opts.Logger },
		func() mqtt.Dialer { return opts.Dialer },
		state.NewSignal,
		newStore,
		newPool,
		newRegistry,
		newCatalogFromConfig,
		newDispatcher,
		newHistory,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("providing %T: %w", p, err)
		}
	}
	return c, nil
}

func newStore(wake *state.Signal, log *logging.Logger) *state.Store {
	s := state.NewStore(wake)
	s.SetLogger(log.Component("state"))
	return s
}

func newPool(ctx context.Context, cfg *config.Config, dialer mqtt.Dialer, log *logging.Logger) (*pool.Pool, error) {
	return pool.New(ctx, pool.Options{
		Address: cfg.Broker.Address,
		Credentials: mqtt.Credentials{
			Username: cfg.Broker.Username,
			Password: cfg.Broker.Password,
		},
		Size:           cfg.Pool.Size,
		ClientIDPrefix: cfg.Broker.ClientIDPrefix,
		SettleDelay:    cfg.SettleDelay(),
		Dialer:         dialer,
		Logger:         log.Component("pool"),
	})
}

func newRegistry(cfg *config.Config, dialer mqtt.Dialer, log *logging.Logger) *receiver.Registry {
	return receiver.NewRegistry(receiver.Options{
		Dialer:      dialer,
		SettleDelay: cfg.SettleDelay(),
		Logger:      log.Component("receiver"),
	})
}

func newCatalogFromConfig(cfg *config.Config) (*command.Catalog, error) {
	return NewCatalog(cfg.Commands)
}

// NewCatalog builds a command catalog from configured definitions,
// preserving their order.
func NewCatalog(defs []config.CommandConfig) (*command.Catalog, error) {
	catalog := command.NewCatalog()
	for _, def := range defs {
		err := catalog.Add(command.Definition{
			Name:   def.Name,
			Topic:  def.Topic,
			Params: def.Params,
		})
		if err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func newDispatcher(catalog *command.Catalog, p *pool.Pool, log *logging.Logger) *command.Dispatcher {
	return command.NewDispatcher(catalog, p, log.Component("command"))
}

// newHistory connects to InfluxDB when enabled. A disabled sink is not an error.
func newHistory(cfg *config.Config, log *logging.Logger) (historySink, error) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		return historySink{}, nil
	}
	if err != nil {
		return historySink{}, err
	}
	log.Info("state history enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return historySink{Client: client}, nil
}
