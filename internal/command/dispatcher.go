package command

import (
	"context"
	"fmt"
)

// Sender publishes a payload on a topic.
// *pool.Pool satisfies it.
type Sender interface {
	Send(ctx context.Context, topic string, payload []byte) error
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher sends catalog commands through a Sender.
type Dispatcher struct {
	catalog *Catalog
	sender  Sender
	logger  Logger
}

// NewDispatcher creates a dispatcher. logger may be nil.
func NewDispatcher(catalog *Catalog, sender Sender, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{catalog: catalog, sender: sender, logger: logger}
}

// Run looks up name, builds its command and sends it on the command's topic.
// Send errors are wrapped with %w, so errors.Is still matches the pool's and
// connection's sentinel errors.
func (d *Dispatcher) Run(ctx context.Context, name string) error {
	def, err := d.catalog.Get(name)
	if err != nil {
		return err
	}

	payload, err := New(def.Name, def.Params).Encode()
	if err != nil {
		return err
	}

	if err := d.sender.Send(ctx, def.Topic, payload); err != nil {
		d.logger.Error("command send failed",
			"command", name,
			"topic", def.Topic,
			"error", err,
		)
		return fmt.Errorf("sending command %q: %w", name, err)
	}

	d.logger.Info("command sent", "command", name, "topic", def.Topic)
	return nil
}
