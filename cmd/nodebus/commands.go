package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nodebus/internal/app"
	"github.com/nerrad567/nodebus/internal/infrastructure/config"
	"github.com/nerrad567/nodebus/internal/infrastructure/logging"
	"github.com/nerrad567/nodebus/internal/infrastructure/mqtt"
)

// sendTimeout bounds a single "send" invocation.
const sendTimeout = 30 * time.Second

// cli carries flag values and test seams shared by the subcommands.
type cli struct {
	configPath string

	// dialer overrides mqtt.Dial in tests.
	dialer mqtt.Dialer

	// logOutput overrides the configured log destination in tests.
	logOutput io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nodebus",
		Short:         "Command and state bus for MQTT-connected nodes",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "",
		"config file (default $NODEBUS_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Subscribe to node state and log every change",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "send <command>",
			Short: "Publish one configured command",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runSend(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "commands",
			Short: "List configured commands",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.runCommands(cmd.OutOrStdout())
			},
		},
	)
	return root
}

// load reads the configuration and builds the logger for it.
func (c *cli) load() (*config.Config, *logging.Logger, error) {
	path := getConfigPath(c.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	var log *logging.Logger
	if c.logOutput != nil {
		log = logging.NewWithWriter(cfg.Logging, version, c.logOutput)
	} else {
		log = logging.New(cfg.Logging, version)
	}
	log.Debug("configuration loaded", "path", path)
	return cfg, log, nil
}

func (c *cli) newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app.App, error) {
	return app.New(ctx, app.Options{
		Config: cfg,
		Logger: log,
		Dialer: c.dialer,
	})
}

// runServe starts the receivers and logs a snapshot after every state change
// until ctx is cancelled.
func (c *cli) runServe(ctx context.Context) error {
	cfg, log, err := c.load()
	if err != nil {
		return err
	}
	log.Info("starting nodebus",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	a, err := c.newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	defer func() {
		log.Info("shutting down")
		if closeErr := a.Close(); closeErr != nil {
			log.Error("error during shutdown", "error", closeErr)
		}
	}()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting receivers: %w", err)
	}
	log.Info("nodebus running", "broker", cfg.Broker.Address, "pool_size", a.Pool().Size())

	return a.Watch(ctx, func(snapshot map[string]string) {
		log.Info("node state changed", "keys", len(snapshot), "state", snapshot)
	})
}

// runSend publishes one catalog command.
func (c *cli) runSend(ctx context.Context, name string) error {
	cfg, log, err := c.load()
	if err != nil {
		return err
	}

	catalog, err := app.NewCatalog(cfg.Commands)
	if err != nil {
		return err
	}
	if _, err := catalog.Get(name); err != nil {
		return err
	}

	a, err := c.newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	defer a.Close()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return a.Send(sendCtx, name)
}

// runCommands prints the catalog without touching the broker.
func (c *cli) runCommands(out io.Writer) error {
	cfg, _, err := c.load()
	if err != nil {
		return err
	}

	catalog, err := app.NewCatalog(cfg.Commands)
	if err != nil {
		return err
	}
	for _, name := range catalog.Names() {
		def, _ := catalog.Get(name)
		fmt.Fprintf(out, "%s\t%s\t%v\n", def.Name, def.Topic, def.Params)
	}
	return nil
}
