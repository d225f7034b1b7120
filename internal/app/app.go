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

// Options configures New.
type Options struct {
	// Config is the loaded configuration. Required.
	Config *config.Config

	// Logger is the root logger. logging.Default() when nil.
	Logger *logging.Logger

	// Dialer builds transports. mqtt.Dial when nil.
	Dialer mqtt.Dialer
}

// App owns every long-lived component of a nodebus process.
type App struct {
	cfg *config.Config
	log *logging.Logger

	container *dig.Container

	wake       *state.Signal
	store      *state.Store
	pool       *pool.Pool
	registry   *receiver.Registry
	catalog    *command.Catalog
	dispatcher *command.Dispatcher

	history *influxdb.Client
}

// New builds the container and resolves the core components. The pool's
// connections are dialled here; receivers and the history sink wait for Start.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = mqtt.Dial
	}

	c, err := newContainer(ctx, opts)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       opts.Config,
		log:       opts.Logger,
		container: c,
	}
	err = c.Invoke(func(
		wake *state.Signal,
		store *state.Store,
		p *pool.Pool,
		registry *receiver.Registry,
		catalog *command.Catalog,
		dispatcher *command.Dispatcher,
	) {
		a.wake = wake
		a.store = store
		a.pool = p
		a.registry = registry
		a.catalog = catalog
		a.dispatcher = dispatcher
	})
	if err != nil {
		return nil, fmt.Errorf("building components: %w", dig.RootCause(err))
	}

	return a, nil
}

// Start registers the state receiver and any extra topic receivers, then
// connects the history sink when InfluxDB is enabled.
//
// A receiver whose subscribe fails stays registered and is only logged, so
// Start fails only for receivers that could not be created at all.
func (a *App) Start(ctx context.Context) error {
	creds := a.credentials()

	stateTopic := a.cfg.Receivers.StateTopic
	rcv, err := a.registry.Register(ctx, stateTopic, a.cfg.Broker.Address, creds)
	if rcv == nil {
		return fmt.Errorf("registering state receiver: %w", err)
	}
	if err != nil {
		a.log.Warn("state receiver registered without subscription", "topic", stateTopic, "error", err)
	}
	if err := a.registry.AddCallback(stateTopic, state.SyncHandler(a.store, a.log.Component("state"))); err != nil {
		return fmt.Errorf("installing state callback: %w", err)
	}

	for _, topic := range a.cfg.Receivers.Topics {
		rcv, err := a.registry.Register(ctx, topic, a.cfg.Broker.Address, creds)
		if rcv == nil {
			return fmt.Errorf("registering receiver for %q: %w", topic, err)
		}
		if err != nil {
			a.log.Warn("receiver registered without subscription", "topic", topic, "error", err)
		}
		rcv.AddCallback(a.logPayload)
	}

	if err := a.container.Invoke(func(h historySink) { a.history = h.Client }); err != nil {
		return fmt.Errorf("connecting history sink: %w", dig.RootCause(err))
	}
	if a.history != nil {
		a.attachHistory()
	}

	a.log.Info("receivers started",
		"state_topic", stateTopic,
		"topics", a.registry.Len(),
		"history", a.history != nil,
	)
	return nil
}

// attachHistory records every applied state message in InfluxDB.
func (a *App) attachHistory() {
	log := a.log.Component("influxdb")
	a.history.SetOnError(func(err error) {
		log.Error("state history write failed", "error", err)
	})
	a.store.SetOnApplied(func(applied state.Applied) {
		a.history.WriteStateChange(applied.NodeID, applied.Kind, applied.Values)
	})
}

func (a *App) logPayload(topic string, payload []byte) error {
	a.log.Info("message received", "topic", topic, "payload", string(payload))
	return nil
}

func (a *App) credentials() mqtt.Credentials {
	return mqtt.Credentials{
		Username: a.cfg.Broker.Username,
		Password: a.cfg.Broker.Password,
	}
}

// Watch calls fn with a fresh snapshot each time the store changes, until
// ctx is done. A change made before Watch starts is reported immediately.
func (a *App) Watch(ctx context.Context, fn func(snapshot map[string]string)) error {
	for {
		woken := a.wake.C()
		if a.store.ClearDirty() {
			fn(a.store.Snapshot())
		}

		select {
		case <-woken:
		case <-ctx.Done():
			return nil
		}
	}
}

// Send dispatches the named catalog command through the pool.
func (a *App) Send(ctx context.Context, name string) error {
	return a.dispatcher.Run(ctx, name)
}

// Close shuts down receivers, the pool and the history sink.
func (a *App) Close() error {
	var errs []error
	if err := a.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing receivers: %w", err))
	}
	if err := a.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing pool: %w", err))
	}
	if err := a.history.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing history: %w", err))
	}
	return errors.Join(errs...)
}

// Store returns the shared state store.
func (a *App) Store() *state.Store { return a.store }

// Signal returns the store's wake signal.
func (a *App) Signal() *state.Signal { return a.wake }

// Pool returns the outbound pool.
func (a *App) Pool() *pool.Pool { return a.pool }

// Registry returns the receiver registry.
func (a *App) Registry() *receiver.Registry { return a.registry }

// Catalog returns the command catalog.
func (a *App) Catalog() *command.Catalog { return a.catalog }
