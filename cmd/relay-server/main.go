package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shurlinet/toxrelay/internal/daemonstate"
	"github.com/shurlinet/toxrelay/internal/identity"
	"github.com/shurlinet/toxrelay/internal/relayconfig"
	"github.com/shurlinet/toxrelay/pkg/relay"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func printUsage() {
	fmt.Println("Usage: relay-server [-config path] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (no command)    Start the relay server")
	fmt.Println("  version         Print version information")
	fmt.Println("  help            Show this help message")
}

func main() {
	configPath := flag.String("config", "", "path to relay-server.yaml (defaults to standard search locations)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "help", "--help", "-h":
			printUsage()
			return
		case "version", "--version":
			fmt.Printf("relay-server %s (%s)\n", version, commit)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printUsage()
			os.Exit(1)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	path, err := relayconfig.FindConfigFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to locate config: %v", err)
	}
	cfg, err := relayconfig.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	if err := relayconfig.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	slog.Info("relay-server: configuration loaded", "path", path)

	pk, err := identity.LoadOrCreate(cfg.Identity.KeyFile)
	if err != nil {
		log.Fatalf("Identity error: %v", err)
	}
	slog.Info("relay-server: identity loaded", "pk", pk)

	metrics := relay.NewMetrics()

	var onionSink relay.OnionSink
	if cfg.Onion.Enabled {
		chanSink := relay.NewChanOnionSink()
		onionSink = relay.NewRateLimitedOnionSink(chanSink, rate.Limit(cfg.Onion.RateLimitPerSec), cfg.Onion.RateLimitBurst)
		slog.Info("relay-server: onion egress enabled", "sink", cfg.Onion.UDPSinkAddress,
			"rate_per_sec", cfg.Onion.RateLimitPerSec, "burst", cfg.Onion.RateLimitBurst)
	} else {
		slog.Warn("relay-server: onion egress disabled; OnionRequest packets will be dropped")
	}

	server := relay.NewServer(
		relay.WithOnionSink(onionSink),
		relay.WithMetrics(metrics),
		relay.WithLogger(slog.Default()),
		relay.WithSweepInterval(cfg.Keepalive.SweepInterval),
	)

	// daemonstate.Bridge seeds the DHT close-node set from a previously
	// persisted state file. The DHT routing table and its NodeRequester
	// implementation are external collaborators (see relayconfig for the
	// relay's own scope); this wiring point is left for that collaborator
	// to supply.
	_ = daemonstate.New(slog.Default(), metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	server.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		server.Stop()
		return nil
	})

	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		httpServer := &http.Server{
			Addr:         cfg.Telemetry.Metrics.ListenAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("relay-server: metrics endpoint started", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	slog.Info("relay-server: running", "listen_addresses", cfg.Network.ListenAddresses)
	slog.Info("relay-server: press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		slog.Error("relay-server: exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("relay-server: stopped")
}
