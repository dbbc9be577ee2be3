package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/kevin07696/newebpay-service/internal/config"
	"github.com/kevin07696/newebpay-service/internal/db/migrations"
)

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := fs.String("dir", "", "directory with migration files (default: embedded migrations)")
	timeout := fs.Duration("timeout", 5*time.Minute, "abort the command after this long")
	fs.Usage = func() { usage(fs) }
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, args[0], args[1:], *dir, logger); err != nil {
		logger.Fatal("Migration failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(ctx context.Context, command string, args []string, dir string, logger *zap.Logger) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dbCfg := config.DatabaseFromEnv()
		dsn = dbCfg.ConnectionString()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	if dir == "" {
		if command == "create" {
			return fmt.Errorf("create needs -dir pointing at the migrations source directory")
		}
		goose.SetBaseFS(migrations.FS)
		dir = "."
	}
	if err := goose.SetDialect(string(goose.DialectPostgres)); err != nil {
		return err
	}

	logger.Info("Running migration command", zap.String("command", command), zap.String("dir", dir))
	return goose.RunContext(ctx, command, db, dir, args...)
}

func usage(fs *flag.FlagSet) {
	fmt.Fprint(fs.Output(), `Usage: migrate [-dir DIR] [-timeout D] COMMAND

Commands:
    up                   Apply all pending migrations
    up-by-one            Apply the next pending migration
    up-to VERSION        Migrate to VERSION
    down                 Roll back the latest migration
    down-to VERSION      Roll back to VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Show applied and pending migrations
    version              Print the current schema version
    create NAME sql      Create a new migration file (requires -dir)

Connection:
    DATABASE_URL, or DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE

Flags:
`)
	fs.PrintDefaults()
}
