package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/assetly/assetly/internal/api"
	"github.com/assetly/assetly/internal/db"
	"github.com/assetly/assetly/internal/engine"
	"github.com/assetly/assetly/internal/notify"
	"github.com/assetly/assetly/internal/scanner"
	"github.com/assetly/assetly/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("assetly", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", "assetly.sqlite3", "")
	fs.StringVar(&dbPath, "d", "assetly.sqlite3", "")

	var addr string
	fs.StringVar(&addr, "addr", ":8080", "")
	fs.StringVar(&addr, "a", ":8080", "")

	var scanInterval time.Duration
	fs.DurationVar(&scanInterval, "scan-interval", scanner.DefaultInterval, "")
	fs.DurationVar(&scanInterval, "s", scanner.DefaultInterval, "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: assetly [flags]

Flags:
  -d, -db <path>             SQLite database path (default: assetly.sqlite3)
  -a, -addr <host:port>      listen address (default: :8080)
  -s, -scan-interval <dur>   overdue scan interval (default: 24h)
  -l, -log <path>            log file path (default: no file, stdout/stderr only)
  -h, -help                  show this help and exit

Environment:
  SMTP_ADDR   SMTP server as host:port; mail is disabled when unset
  SMTP_USER   SMTP username (optional, enables PLAIN auth)
  SMTP_PASS   SMTP password
  SMTP_FROM   From address for notification mail
  BASE_URL    public base URL used in mailed item links
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Open database; the schema script is idempotent, so a missing file is
	// simply created and initialized on first run.
	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", dbPath)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	// SMTP notifier from environment; nil disables mail.
	var notifier notify.Notifier
	if smtpAddr := os.Getenv("SMTP_ADDR"); smtpAddr != "" {
		host := smtpAddr
		if h, _, err := net.SplitHostPort(smtpAddr); err == nil {
			host = h
		}
		notifier = &notify.Mailer{
			DB:       database,
			Addr:     smtpAddr,
			Host:     host,
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
			BaseURL:  strings.TrimSuffix(os.Getenv("BASE_URL"), "/"),
		}
		slog.Info("mail notifications enabled", "smtp", smtpAddr)
	} else {
		slog.Info("mail notifications disabled (SMTP_ADDR unset)")
	}

	eng := &engine.Engine{DB: database, Notifier: notifier}

	// Overdue scanner runs until shutdown.
	scanCtx, stopScanner := context.WithCancel(context.Background())
	defer stopScanner()
	go (&scanner.Scanner{DB: database, Engine: eng, Interval: scanInterval}).Run(scanCtx)

	handler := api.LoggingMiddleware(api.NewRouter(database, eng, jwtSecret))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		stopScanner()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}
