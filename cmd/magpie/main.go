// Command magpie searches Chinese content platforms for a keyword and
// aggregates posts with their hottest comments, either as a one-shot CLI
// run or as a long-lived HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/FranksOps/magpie/internal/api"
	"github.com/FranksOps/magpie/internal/browser"
	"github.com/FranksOps/magpie/internal/config"
	"github.com/FranksOps/magpie/internal/loginstate"
	"github.com/FranksOps/magpie/internal/metrics"
	"github.com/FranksOps/magpie/internal/model"
	"github.com/FranksOps/magpie/internal/orchestrator"
	"github.com/FranksOps/magpie/internal/registry"
	"github.com/FranksOps/magpie/internal/report"
	"github.com/FranksOps/magpie/internal/session"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "magpie",
		Usage:   "multi-platform content search aggregator",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (YAML)",
				Sources: cli.EnvVars("MAGPIE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			searchCommand(),
			platformsCommand(),
			configCommand(),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildOrchestrator wires the session registry, the login-state store and
// the DevTools launcher. The returned close func releases the store.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, func(), error) {
	var store *loginstate.Store
	closeStore := func() {}
	if cfg.Login.SaveState {
		var err error
		store, err = loginstate.Open(cfg.Login.StatePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open login state: %w", err)
		}
		closeStore = func() { _ = store.Close() }
	}

	var cookies session.CookieStore
	if store != nil {
		cookies = store
	}
	reg := registry.New(cfg, cookies, logger)
	launcher := browser.NewCDP(cfg.Browser.CDPAddress, logger)
	return orchestrator.New(cfg, reg, launcher, logger), closeStore, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides config)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if h := cmd.String("host"); h != "" {
				cfg.API.Host = h
			}
			if p := cmd.Int("port"); p != 0 {
				cfg.API.Port = int(p)
			}

			orch, closeStore, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if cfg.API.MetricsPort > 0 {
				m := metrics.Start(cfg.API.MetricsPort)
				defer func() { _ = m.Stop(context.Background()) }()
			}

			srv := api.NewServer(cfg, orch, logger)
			logger.Info("starting api server",
				"host", cfg.API.Host, "port", cfg.API.Port, "version", version)
			return srv.Run()
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search a keyword across platforms and print the results",
		ArgsUsage: "<keyword>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "platforms",
				Aliases: []string{"p"},
				Usage:   "Comma-separated platform names (default: all supported)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "simple",
				Usage:   "Output format: json, markdown or simple",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Write the report to a file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			keyword := strings.TrimSpace(cmd.Args().First())
			if keyword == "" {
				return fmt.Errorf("usage: magpie search <keyword>")
			}

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			orch, closeStore, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var targets []string
			if raw := cmd.String("platforms"); raw != "" {
				for _, p := range strings.Split(raw, ",") {
					if p = strings.TrimSpace(p); p != "" {
						targets = append(targets, p)
					}
				}
			}

			result, err := orch.SearchAllPlatforms(ctx, keyword, targets)
			if err != nil {
				return err
			}

			out := os.Stdout
			if path := cmd.String("save"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeResult(out, result, cmd.String("output")); err != nil {
				return err
			}
			if result.Status == model.StatusFailed {
				return fmt.Errorf("all platforms failed")
			}
			return nil
		},
	}
}

func writeResult(w *os.File, result *model.SearchResult, format string) error {
	switch format {
	case "json":
		return report.WriteJSON(w, result)
	case "markdown", "md":
		return report.WriteMarkdown(w, result)
	case "simple", "":
		return report.WriteText(w, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func platformsCommand() *cli.Command {
	return &cli.Command{
		Name:  "platforms",
		Usage: "List supported platforms and their aliases",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			aliases := make(map[string][]string)
			for alias, canonical := range cfg.AliasTable() {
				if alias != canonical {
					aliases[canonical] = append(aliases[canonical], alias)
				}
			}
			for _, name := range cfg.Supported() {
				line := name
				if a := aliases[name]; len(a) > 0 {
					sort.Strings(a)
					line += " (" + strings.Join(a, ", ") + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Show the live configuration, or update a field with --set",
		ArgsUsage: "[--set key value]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "set",
				Usage: "Update a field: config --set key value",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("set") {
				args := cmd.Args()
				if args.Len() != 2 {
					return fmt.Errorf("usage: magpie config --set <key> <value>")
				}
				key, raw := args.Get(0), args.Get(1)
				applied := cfg.Update(map[string]any{key: coerce(raw)})
				if len(applied) == 0 {
					return fmt.Errorf("unknown or invalid config field %q", key)
				}
				fmt.Printf("%s = %s\n", key, raw)
				return nil
			}

			view := cfg.View()
			keys := make([]string, 0, len(view))
			for k := range view {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s: %v\n", k, view[k])
			}
			return nil
		},
	}
}

// coerce maps a CLI string value onto the type the config field expects.
func coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
