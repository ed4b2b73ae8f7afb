package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/shmaxi/excel-mcp-server/config"
	"github.com/shmaxi/excel-mcp-server/internal/registry"
	"github.com/shmaxi/excel-mcp-server/internal/runtime"
	"github.com/shmaxi/excel-mcp-server/internal/security"
	"github.com/shmaxi/excel-mcp-server/internal/telemetry"
	"github.com/shmaxi/excel-mcp-server/internal/tools"
	"github.com/shmaxi/excel-mcp-server/internal/workbooks"
	"github.com/shmaxi/excel-mcp-server/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// a missing .env is normal
	_ = godotenv.Load()

	app := &cli.App{
		Name:    version.Name,
		Usage:   "MCP server for reading and editing Excel workbooks",
		Version: version.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:  "allowed-dirs",
				Usage: "directories workbooks may live in (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "hide and reject tools that modify workbooks",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "context-model",
				Usage: "log the token cost of the tool listing for this model",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "stdio",
				Usage: "serve MCP over stdin/stdout",
				Action: func(c *cli.Context) error {
					in, err := setup(c)
					if err != nil {
						return err
					}
					defer in.logStats()
					in.logger.Info().Str("transport", "stdio").Msg("serving")
					return server.ServeStdio(in.srv)
				},
			},
			{
				Name:  "sse",
				Usage: "serve MCP over HTTP server-sent events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8000", Usage: "listen address"},
					&cli.StringFlag{Name: "base-url", Usage: "public base URL advertised to clients"},
					&cli.DurationFlag{Name: "shutdown-timeout", Value: 5 * time.Second, Usage: "graceful shutdown timeout"},
				},
				Action: serveSSE,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		// stdout belongs to the stdio transport
		fmt.Fprintf(os.Stderr, "%s: %v\n", version.Name, err)
		os.Exit(1)
	}
}

// instance is an assembled server ready to be bound to a transport.
type instance struct {
	srv    *server.MCPServer
	logger zerolog.Logger
	hooks  *telemetry.Hooks
}

// logStats writes one line per tool that was called during the session.
func (in *instance) logStats() {
	for tool, s := range in.hooks.Snapshot() {
		in.logger.Info().
			Str("tool", tool).
			Int("calls", s.Calls).
			Int("errors", s.Errors).
			Dur("total", s.Total).
			Msg("tool stats")
	}
}

// setup loads configuration and assembles the MCP server.
func setup(c *cli.Context) (*instance, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dirs := c.StringSlice("allowed-dirs"); len(dirs) > 0 {
		cfg.AllowedDirs = dirs
	}
	if c.IsSet("read-only") {
		cfg.ReadOnly = c.Bool("read-only")
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stderr).Level(level).With().
		Timestamp().
		Str("service", version.Name).
		Logger()

	sec, err := security.NewManager(cfg.AllowedDirs, nil)
	if err != nil {
		return nil, err
	}
	if err := sec.ValidateConfig(); err != nil {
		return nil, err
	}
	logger.Info().Strs("allowed_dirs", sec.AllowedDirectories()).Msg("security allow-list configured")

	ctrl := runtime.NewController(runtime.LimitsFromConfig(cfg.Limits))
	limits := ctrl.LimitsSnapshot()
	mw := runtime.NewMiddleware(ctrl, logger)

	wb := workbooks.NewManager(workbooks.Options{
		Gate:        ctrl,
		Validator:   sec,
		LockDir:     cfg.LockDir,
		LockTimeout: limits.LockTimeout,
	})

	b := registry.NewBuilder()
	tools.Register(b, tools.Deps{Workbooks: wb, Limits: limits})
	reg, err := b.Build()
	if err != nil {
		return nil, err
	}
	filter := registry.NewReadOnlyFilter(reg, cfg.ReadOnly)
	hooks := telemetry.NewHooks(logger)

	srv := server.NewMCPServer(
		version.Name,
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.Server()),
		server.WithToolHandlerMiddleware(mw.ToolMiddleware),
		server.WithToolHandlerMiddleware(filter.ToolMiddleware),
		server.WithToolFilter(filter.FilterTools),
	)
	reg.Mount(srv)

	ev := logger.Info().
		Str("version", version.Version()).
		Int("tools", len(reg.Names())).
		Bool("read_only", cfg.ReadOnly).
		Str("lock_dir", cfg.LockDir).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_workbooks", limits.MaxOpenWorkbooks).
		Int("max_cells_per_op", limits.MaxCellsPerOp)
	if model := c.String("context-model"); model != "" {
		cost, err := reg.TokenCost(model)
		if err != nil {
			logger.Warn().Err(err).Str("model", model).Msg("token cost unavailable")
		} else {
			ev = ev.Str("model", model).Int("tool_tokens", cost).Int("model_context_size", reg.ModelContextSize(model))
		}
	}
	ev.Msg("server bootstrap configured")

	return &instance{srv: srv, logger: logger, hooks: hooks}, nil
}

func serveSSE(c *cli.Context) error {
	in, err := setup(c)
	if err != nil {
		return err
	}
	defer in.logStats()
	logger := in.logger
	addr := c.String("addr")
	var opts []server.SSEOption
	if base := c.String("base-url"); base != "" {
		opts = append(opts, server.WithBaseURL(base))
	}
	sse := server.NewSSEServer(in.srv, opts...)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("transport", "sse").Str("addr", addr).Msg("serving")
		errc <- sse.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
	defer cancel()
	return sse.Shutdown(shutdownCtx)
}
