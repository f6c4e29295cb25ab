package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agrilink/feedsync/internal/config"
	"github.com/agrilink/feedsync/internal/engage"
	"github.com/agrilink/feedsync/internal/feed"
	"github.com/agrilink/feedsync/internal/identity"
	"github.com/agrilink/feedsync/internal/media"
	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/profile"
	"github.com/agrilink/feedsync/internal/remote"
	"github.com/agrilink/feedsync/internal/subscription"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

func main() {
	// Define subcommands
	if len(os.Args) > 1 && os.Args[1] == "init" {
		handleInit()
		return
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("feedsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("feedsync - Live feed synchronization engine")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  feedsync init              Generate example configuration")
		fmt.Println("  feedsync --version         Show version information")
		fmt.Println("  feedsync --config <path>   Start with configuration file")
		os.Exit(1)
	}

	// Secrets come from the environment; a local .env file is optional
	_ = godotenv.Load()

	// Load and validate configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting feedsync %s\n", version)
	fmt.Printf("  Database: %s/%s\n", cfg.Mongo.URI, cfg.Mongo.Database)
	fmt.Println()

	// Run the application
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	// Connect to the remote document store
	fmt.Println("Connecting to document store...")
	mongo, err := remote.Dial(ctx, &cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to document store: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := mongo.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing document store: %v\n", err)
		}
	}()
	fmt.Println("  Document store connected")

	// Establish session identity
	provider := identity.NewTokenProvider(cfg.Identity.Secret)
	selfID := ""
	if cfg.Identity.SessionToken != "" {
		ident, err := provider.SignIn(cfg.Identity.SessionToken)
		if err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}
		selfID = ident.UserID
		fmt.Printf("  Signed in as %s\n", ident.DisplayName)
	} else {
		fmt.Println("  No session token, feed is read-only")
	}

	// Media uploads (optional)
	var uploader media.Uploader
	if cfg.Media.CloudinaryURL != "" {
		up, err := media.NewCloudinaryUploader(cfg.Media.CloudinaryURL, cfg.Media.Folder)
		if err != nil {
			return fmt.Errorf("failed to initialize media uploads: %w", err)
		}
		uploader = up
		fmt.Println("  Media uploads enabled")
	}

	// Initialize the feed engine
	fmt.Println("Initializing feed engine...")
	store := feed.NewStore()
	profiles := profile.NewCache(mongo, logger)
	view := feed.NewView(store, profiles)
	controller := engage.New(store, mongo, provider, uploader, logger, &cfg.Feed)
	reconciler := subscription.New(store, mongo, selfID, logger)
	fmt.Println("  Feed engine ready")

	// Consume user notices
	go func() {
		for n := range controller.Notices() {
			if n.Level == engage.NoticeError {
				logger.Warn("notice", "message", n.Message, "post_id", n.PostID, "error", n.Err)
			} else {
				logger.Info("notice", "message", n.Message, "post_id", n.PostID)
			}
		}
	}()

	// Run the subscription channel with reconnect backoff
	go func() {
		attempt := 0
		for {
			err := reconciler.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				attempt = 0
				continue
			}

			backoffs := cfg.Feed.ReconnectBackoffMs
			idx := attempt
			if idx >= len(backoffs) {
				idx = len(backoffs) - 1
			}
			delay := time.Duration(backoffs[idx]) * time.Millisecond
			attempt++

			logger.Warn("subscription channel lost, reconnecting",
				"attempt", attempt,
				"delay", delay,
				"error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()

	// Periodically log the rendered feed state at debug level
	if logger.IsDebugEnabled() {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					views := view.SnapshotOrdered(ctx)
					logger.Debug("feed state",
						"posts", len(views),
						"channel", reconciler.State().String())
				}
			}
		}()
	}

	fmt.Println()
	fmt.Println("✓ Feed synchronization running!")
	fmt.Println()
	fmt.Println("Press Ctrl+C to shutdown gracefully...")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down gracefully...")
	logger.LogShutdown("signal")

	cancel()

	// In-flight engagement writes finish before the store goes away
	controller.Wait()

	fmt.Println("✓ Shutdown complete")
	return nil
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}

	// Write to stdout
	fmt.Print(string(exampleConfig))
}
