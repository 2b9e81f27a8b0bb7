package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/erazemk/teamdesk/internal/api"
	"github.com/erazemk/teamdesk/internal/config"
	"github.com/erazemk/teamdesk/internal/db"
	"github.com/erazemk/teamdesk/internal/realtime"
	"github.com/erazemk/teamdesk/internal/store"
)

// loadConfig reads the config sources and applies the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	file, _ := flags.GetString("config")
	dotEnv, _ := flags.GetString("env")

	cfg, err := config.Load(config.Options{File: file, DotEnv: dotEnv})
	if err != nil {
		return config.Config{}, err
	}

	set := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	set("db", &cfg.DBPath)
	set("log", &cfg.LogPath)
	set("addr", &cfg.Addr)
	set("user", &cfg.AdminUser)
	set("redis", &cfg.RedisAddr)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "teamdesk",
		Short:         "Team equipment loans and calendar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "YAML config file")
	pf.String("env", ".env", "dotenv file (ignored if missing)")
	pf.StringP("db", "d", "", "SQLite database path (default: teamdesk.sqlite3)")
	pf.StringP("log", "l", "", "log file path (default: stdout/stderr only)")

	root.AddCommand(newServeCmd(), newInitCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, creating the database on first run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closeLog, err := setupLogger(cfg.LogPath)
			if err != nil {
				return err
			}
			defer closeLog()
			return serve(cfg)
		},
	}
	cmd.Flags().StringP("addr", "a", "", "listen address (default: :8080)")
	cmd.Flags().StringP("user", "u", "", "admin username on first run (default: Admin)")
	cmd.Flags().String("redis", "", "Redis address for sharing changes between instances")
	return cmd
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new database and admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DBPath); err == nil {
				return fmt.Errorf("database %s already exists", cfg.DBPath)
			}

			database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
			if err != nil {
				return err
			}
			defer database.Close()

			printInitResult(cmd.OutOrStdout(), cfg.DBPath, cfg.AdminUser, password)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", "", "admin username (default: Admin)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(database); err != nil {
				return err
			}
			v, dirty, err := db.SchemaVersion(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "teamdesk %s\n", version)
		},
	}
}

// serve runs the server until SIGINT or SIGTERM.
func serve(cfg config.Config) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DBPath, cfg.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(os.Stdout, cfg.DBPath, cfg.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	hub := realtime.NewHub(realtime.DefaultBuffer)
	defer hub.Close()

	opts := api.Options{
		Hub:          hub,
		HistoryLimit: cfg.HistoryLimit,
		RecoveryTTL:  cfg.RecoveryTTL,
	}
	if cfg.Metrics {
		opts.Metrics = api.NewMetrics()
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}

		bridge := realtime.NewBridge(hub, rdb, cfg.RedisChannel)
		opts.Changes = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("realtime bridge stopped", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, jwtSecret, opts)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		// Ends open change streams so Shutdown does not wait on them.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "metrics", cfg.Metrics, "redis", cfg.RedisAddr != "")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}
