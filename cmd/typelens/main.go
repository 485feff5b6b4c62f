// Command typelens is the typography inspection daemon.
//
// Usage:
//
//	typelens -config typelens.yaml        # inspect the configured page
//	typelens -url https://example.com     # quick single-page session
//	typelens -audit page.html             # offline report, no browser
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/typelens/typelens/dbopen"
	"github.com/typelens/typelens/host"
	"github.com/typelens/typelens/idgen"
	"github.com/typelens/typelens/inspect"
	"github.com/typelens/typelens/internal/browser"
	"github.com/typelens/typelens/observability"
	"github.com/typelens/typelens/session"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to typelens.yaml config file")
	singleURL := flag.String("url", "", "inspect a single URL with default settings")
	auditPath := flag.String("audit", "", "classify a static HTML file and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *auditPath); err != nil {
		logger.Error("typelens: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, auditPath string) error {
	if auditPath != "" {
		return runAudit(auditPath)
	}

	if singleURL != "" {
		cfg := &session.FileConfig{Page: session.PageConfig{URL: singleURL}}
		cfg.ApplyDefaults()
		return runServe(ctx, logger, cfg)
	}

	if configPath != "" {
		cfg, err := session.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		if cfg.Page.URL == "" {
			return errors.New("config: page.url is required")
		}
		return runServe(ctx, logger, cfg)
	}

	fmt.Fprintln(os.Stderr, "usage: typelens -config <file> | -url <url> | -audit <file.html>")
	os.Exit(1)
	return nil
}

// auditEntry is one inspectable node in the offline report.
type auditEntry struct {
	XPath string                 `json:"xpath"`
	Tag   string                 `json:"tag"`
	Text  string                 `json:"text"`
	Style *inspect.StyleSnapshot `json:"style"`
	Color *inspect.ColorSnapshot `json:"color,omitempty"`
}

// runAudit classifies every element of a static HTML file and prints the
// inspectable ones as a JSON report. The same classifier and sampler run
// here as against a live page.
func runAudit(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer f.Close()

	surface, err := inspect.ParseStatic(f)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	ctx := context.Background()
	vp, err := surface.Viewport(ctx)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	var report []auditEntry
	for _, node := range surface.Elements() {
		info, err := surface.Describe(ctx, node)
		if err != nil || info == nil {
			continue
		}
		if !inspect.Classify(info, vp) {
			continue
		}
		report = append(report, auditEntry{
			XPath: inspect.XPathOf(node),
			Tag:   info.Tag,
			Text:  truncateText(info.Text, 120),
			Style: inspect.SnapshotOf(info),
			Color: inspect.ColorOf(info),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// truncateText caps s at max bytes without splitting a multi-byte rune.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *session.FileConfig) error {
	var eventLog *observability.EventLog
	if cfg.EventLog.Path != "" {
		db, err := dbopen.Open(cfg.EventLog.Path, dbopen.WithMkdirAll())
		if err != nil {
			return fmt.Errorf("event log open: %w", err)
		}
		defer db.Close()
		if err := observability.Init(db); err != nil {
			return fmt.Errorf("event log init: %w", err)
		}
		if err := observability.Cleanup(ctx, db, observability.RetentionConfig{
			EventsDays: cfg.EventLog.RetentionDays,
		}); err != nil {
			logger.Warn("event log cleanup", "error", err)
		}
		eventLog = observability.NewEventLog(db)
	}

	mode := browser.ModeHeadful
	if cfg.Browser.Mode == "headless" {
		mode = browser.ModeHeadless
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Mode:             mode,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("browser start: %w", err)
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, cfg.Page.URL, idgen.New())
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	defer tab.Close()

	var notifiers []host.Notifier
	for _, nc := range cfg.Notifiers {
		switch nc.Type {
		case "stdout":
			notifiers = append(notifiers, host.NewStdout(os.Stdout))
		case "webhook":
			notifiers = append(notifiers, host.NewWebhook(nc.URL, host.WithWebhookLogger(logger)))
		default:
			logger.Warn("unknown notifier type", "type", nc.Type)
		}
	}

	var clip host.Clipboard = browser.NewPageClipboard(tab)
	if cfg.Clipboard == "os" {
		clip = host.SystemClipboard{}
	}

	sess, err := session.New(session.Config{
		Surface:           browser.NewSurface(tab),
		Overlay:           browser.NewOverlay(tab),
		Source:            browser.NewTracker(tab, logger),
		Notifier:          host.NewRouter(logger, notifiers...),
		Clipboard:         clip,
		Logger:            logger,
		EventLog:          eventLog,
		FrameInterval:     cfg.Coalesce.FrameInterval,
		ContentPeriod:     cfg.Coalesce.ContentPeriod,
		SelectionDebounce: cfg.Coalesce.SelectionDebounce,
	})
	if err != nil {
		return err
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "typelens",
		Version: version,
	}, nil)
	sess.RegisterMCP(mcpSrv)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	sess.RegisterHTTP(r)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpSrv
	}, nil))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("control API listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("control API", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info("typelens attached",
		"url", cfg.Page.URL,
		"session", sess.ID(),
		"mode", mode.String())
	return sess.Run(ctx)
}
