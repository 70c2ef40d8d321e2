// Command tasksyncd hosts shared automerge task stores for tasksync clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tasksync/internal/syncserver"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", envOr("TASKSYNCD_ADDR", "localhost:8080"), "the address to listen on")
	driverVar := flag.String("db-driver", envOr("TASKSYNCD_DB_DRIVER", syncserver.DriverSQLite), "sqlite3 or postgres")
	dsnVar := flag.String("db", envOr("TASKSYNCD_DB", "tasksyncd.sqlite3"), "database file or connection string")
	persistVar := flag.Duration("persist-interval", syncserver.DefaultPersistInterval, "how often changed stores are saved")
	syncVar := flag.Duration("sync-interval", time.Second, "how often sync messages are flushed to clients")
	originsVar := flag.String("origins", os.Getenv("TASKSYNCD_ORIGINS"), "comma separated CORS origins")
	debugVar := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *debugVar {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("Opening database", "driver", *driverVar)
	repo, err := syncserver.OpenRepo(ctx, *driverVar, *dsnVar)
	if err != nil {
		return err
	}
	defer repo.Close()

	var origins []string
	if *originsVar != "" {
		origins = strings.Split(*originsVar, ",")
	}
	srv := syncserver.New(repo, syncserver.Options{
		SyncInterval:    *syncVar,
		PersistInterval: *persistVar,
		AllowedOrigins:  origins,
		Logger:          log,
	})
	if err := srv.Load(ctx); err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}

	return srv.Run(ctx, *addrVar)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
