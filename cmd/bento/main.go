// Command bento is the indexer's single binary: it wires config, logging,
// storage, the node client and the worker/read-API into a single `run`
// command with four modes (server, worker, backfill, backfill-status), the
// nesting named in the external interfaces section.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"bento-indexer/examples/transfercount"
	"bento-indexer/internal/api"
	"bento-indexer/internal/client"
	"bento-indexer/internal/config"
	"bento-indexer/internal/logger"
	"bento-indexer/internal/processor"
	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
	"bento-indexer/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "bento",
		Usage: "UTXO/sharded-chain indexer: sync, backfill, and serve the read-API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-path", Value: "config.toml", Usage: "path to the TOML config file"},
			&cli.StringFlag{Name: "network", Usage: "override [worker].network (devnet|testnet|mainnet)"},
		},
		Commands: []*cli.Command{
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bento:", err)
		os.Exit(1)
	}
}

// runCommand is the single `run` command with four modes, nested as
// subcommands the way the original CLI nests RunMode under Commands::Run.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the indexer in one of four modes",
		Subcommands: []*cli.Command{
			runServerCommand(),
			runWorkerCommand(),
			runBackfillCommand(),
			backfillStatusCommand(),
		},
	}
}

// loaded bundles everything every subcommand needs after config/logger/store
// setup, so each command body stays a few lines of orchestration.
type loaded struct {
	cfg      *config.Config
	log      *zap.Logger
	st       store.Store
	provider client.BlockProvider
}

func bootstrap(c *cli.Context) (*loaded, error) {
	cfg, err := config.Load(c.String("config-path"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		return nil, err
	}

	network := cfg.ResolveNetwork(c.String("network"))
	baseURL, err := network.BaseURL(cfg.Worker.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("resolve node base url: %w", err)
	}

	st, err := store.NewPostgres(c.Context, cfg.Worker.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	provider := client.NewHTTPProvider(baseURL, client.WithLogger(logger.Component(log, "client")))

	log.Info("bootstrapped", zap.String("network", network.Identifier()), zap.String("node", baseURL))
	return &loaded{cfg: cfg, log: log, st: st, provider: provider}, nil
}

// builtinRegistry returns the process-wide custom-processor registry,
// populated at startup with every custom processor this binary ships with.
// transfer_count is the one worked example in examples/; a deployment
// vendoring additional processors would Register() them here too.
func builtinRegistry() *processor.Registry {
	reg := processor.NewRegistry()
	reg.Register("transfer_count", transfercount.New)
	return reg
}

// resolveProcessorConfigs turns the [processors.<name>] TOML map into the
// worker's ordered ProcessorConfig slice: a name matching one of the three
// built-in kinds resolves to that built-in, otherwise it is looked up in reg.
// Defaults to running all three built-ins when no [processors.*] section is
// present at all. Unrecognized names are logged and skipped rather than
// failing startup.
func resolveProcessorConfigs(cfg *config.Config, reg *processor.Registry, log *zap.Logger) []processor.Config {
	if len(cfg.Processors) == 0 {
		return []processor.Config{
			{Builtin: processor.BuiltinBlock},
			{Builtin: processor.BuiltinTransaction},
			{Builtin: processor.BuiltinEvent},
		}
	}
	out := make([]processor.Config, 0, len(cfg.Processors))
	for name, blob := range cfg.Processors {
		switch processor.BuiltinKind(name) {
		case processor.BuiltinBlock, processor.BuiltinTransaction, processor.BuiltinEvent:
			out = append(out, processor.Config{Builtin: processor.BuiltinKind(name)})
			continue
		}
		if pc, ok := reg.Config(name, blob); ok {
			out = append(out, pc)
			continue
		}
		log.Warn("unrecognized processor name in config, skipping", zap.String("name", name))
	}
	return out
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "run the read-API HTTP server",
		Action: func(c *cli.Context) error {
			ctx, cancel := interruptContext()
			defer cancel()
			c.Context = ctx

			l, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer l.st.Close()

			if err := l.st.Migrate(ctx, "schema.sql"); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			addr := l.cfg.Server.Port
			if addr == "" {
				addr = ":8080"
			} else if addr[0] != ':' {
				addr = ":" + addr
			}
			srv := api.NewServer(l.st, l.provider, addr, logger.Component(l.log, "api"))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

func runWorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "run the tail-follow sync loop",
		Action: func(c *cli.Context) error {
			ctx, cancel := interruptContext()
			defer cancel()
			c.Context = ctx

			l, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer l.st.Close()

			w := worker.New(worker.Worker{
				Store:            l.st,
				Provider:         l.provider,
				ProcessorConfigs: resolveProcessorConfigs(l.cfg, builtinRegistry(), l.log),
				SyncOpts: &worker.SyncOptions{
					Step:            l.cfg.Worker.Step,
					Backstep:        nonZero(l.cfg.Worker.Backstep, 1000),
					RequestInterval: time.Duration(nonZero(l.cfg.Worker.RequestInterval, 5000)) * time.Millisecond,
				},
				NFetchers: nonZeroInt(l.cfg.Worker.Fetchers, 4),
				Network:   l.cfg.ResolveNetwork(c.String("network")),
				Log:       logger.Component(l.log, "worker"),
			})
			return w.Run(ctx)
		},
	}
}

func runBackfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "run a bounded-range backfill from genesis (or --start-ts) to the chain tip (or --stop-ts)",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "start-ts", Usage: "explicit start timestamp (ms); resolved via height-sync when omitted"},
			&cli.Int64Flag{Name: "stop-ts", Usage: "explicit stop timestamp (ms); resolved from chain tip when omitted"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := interruptContext()
			defer cancel()
			c.Context = ctx

			l, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer l.st.Close()

			opts := &worker.BackfillOptions{
				Step:            nonZero(l.cfg.Backfill.Step, types.MaxTimestampRange),
				Backstep:        nonZero(l.cfg.Backfill.Backstep, 1000),
				RequestInterval: time.Duration(nonZero(l.cfg.Backfill.RequestInterval, 0)) * time.Millisecond,
			}
			if c.IsSet("start-ts") {
				v := c.Int64("start-ts")
				opts.StartTs = &v
			}
			if c.IsSet("stop-ts") {
				v := c.Int64("stop-ts")
				opts.StopTs = &v
			}

			w := worker.New(worker.Worker{
				Store:            l.st,
				Provider:         l.provider,
				ProcessorConfigs: resolveProcessorConfigs(l.cfg, builtinRegistry(), l.log),
				BackfillOpts:     opts,
				NFetchers:        nonZeroInt(l.cfg.Backfill.Workers, 4),
				Network:          l.cfg.ResolveNetwork(c.String("network")),
				Log:              logger.Component(l.log, "backfill"),
			})
			return w.Run(ctx)
		},
	}
}

func backfillStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill-status",
		Usage: "print a processor's last recorded backfill progress",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "processor-name", Required: true},
		},
		Action: func(c *cli.Context) error {
			l, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer l.st.Close()

			network := l.cfg.ResolveNetwork(c.String("network"))
			ts, ok, err := l.st.GetProcessorStatus(c.Context, c.String("processor-name"), network.Identifier(), store.ProcessorStatusKindBackfill)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no backfill progress recorded yet")
				return nil
			}
			fmt.Printf("processor=%s network=%s last_timestamp=%d\n", c.String("processor-name"), network.Identifier(), ts)
			return nil
		},
	}
}

func nonZero(v, fallback int64) int64 {
	if v == 0 {
		return fallback
	}
	return v
}

func nonZeroInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
