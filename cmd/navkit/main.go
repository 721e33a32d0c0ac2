package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/navkit-dev/navkit/engine"
	"github.com/navkit-dev/navkit/host"
	"github.com/navkit-dev/navkit/linkserver"
	"github.com/navkit-dev/navkit/observability"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to navigation config YAML file (required)")
		addr       = flag.String("addr", ":8765", "HTTP listen address")
		snapshot   = flag.String("snapshot", "", "Path to snapshot file (overrides config)")
		sqliteDSN  = flag.String("sqlite", "", "SQLite DSN for snapshots (overrides config)")
		defaults   = flag.String("defaults", "", "Comma-separated default routes shown at launch")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: navkit -config <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := engine.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *snapshot != "" {
		cfg.Persistence.Enabled = true
		cfg.Persistence.Path = *snapshot
	}
	if *sqliteDSN != "" {
		cfg.Persistence.Enabled = true
		cfg.Persistence.DSN = *sqliteDSN
	}

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	bridge := linkserver.NewStreamBridge()
	nav := host.NewMemoryNavigator()

	eng, err := engine.New(cfg,
		engine.WithNavigator(nav),
		engine.WithObserver(observability.NewMultiObserver(
			observability.NewSlogObserver(logger),
			bridge,
		)),
	)
	if err != nil {
		log.Fatalf("Failed to create navigation engine: %v", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var routes []engine.RouteInfo
	for _, p := range strings.Split(*defaults, ",") {
		if p = strings.TrimSpace(p); p != "" {
			routes = append(routes, engine.RouteInfo{Path: p})
		}
	}
	eng.Launch(ctx, routes)

	srv := linkserver.NewServer(eng,
		linkserver.WithLogger(logger),
		linkserver.WithAddr(*addr),
		linkserver.WithBridge(bridge),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("Link server failed: %v", err)
	}
}
