// Command pagesync serves the visual section editor.
//
//	pagesync -config pagesync.yaml            serve HTTP, websocket surfaces and MCP
//	pagesync -config pagesync.yaml -browser   also drive a headless Chrome surface
//	pagesync -hydrate sections.json           hydrate a document to stdout and exit
//	pagesync -mcp-stdio                       serve the MCP tools on stdin/stdout
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagesync"
	"github.com/hazyhaar/pagesync/internal/browser"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/surface"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "YAML config file")
	hydratePath := flag.String("hydrate", "", "hydrate the JSON section array in this file ('-' for stdin) and exit")
	withBrowser := flag.Bool("browser", false, "attach a headless Chrome surface")
	headful := flag.Bool("headful", false, "show the Chrome window (with -browser)")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP tools on stdio instead of HTTP")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	// Logs go to stderr so stdout stays clean for -hydrate and -mcp-stdio.
	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := &pagesync.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = pagesync.LoadConfigFile(*configPath); err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}
	if addr := os.Getenv("PAGESYNC_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *hydratePath != "" {
		cfg.DBPath = ":memory:"
		cfg.Sections = nil
		if err := hydrateFile(ctx, *cfg, *hydratePath); err != nil {
			slog.Error("hydrate", "error", err)
			os.Exit(1)
		}
		return
	}

	ed, err := pagesync.New(ctx, *cfg)
	if err != nil {
		slog.Error("editor", "error", err)
		os.Exit(1)
	}
	defer ed.Close()
	eff := ed.Config()

	if eff.Watch.Enabled {
		go ed.Watch(ctx)
	}

	if *mcpStdio {
		if err := ed.MCPServer(version).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	if *withBrowser {
		go runBrowser(ctx, ed, *headful)
	}

	srv := &http.Server{
		Addr:              eff.Addr,
		Handler:           ed.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}()

	slog.Info("pagesync: listening", "addr", eff.Addr, "doc", eff.DocID, "db", eff.DBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http", "error", err)
		os.Exit(1)
	}
	slog.Info("pagesync: stopped")
}

func runBrowser(ctx context.Context, ed *pagesync.Editor, headful bool) {
	eff := ed.Config()
	surf, err := browser.Launch(ctx, browser.Config{
		Headful: headful,
		Stealth: true,
		Bootstrap: surface.BootstrapConfig{
			Title:       eff.Surface.Title,
			Debounce:    eff.Surface.Debounce,
			Interval:    eff.Surface.Interval,
			TailwindURL: eff.Surface.TailwindURL,
		},
		Logger: ed.Config().Logger,
	})
	if err != nil {
		slog.Error("browser", "error", err)
		return
	}
	if err := ed.Attach(ctx, surf); err != nil {
		slog.Warn("browser session", "error", err)
	}
}

func hydrateFile(ctx context.Context, cfg pagesync.Config, path string) error {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	var sections []section.Section
	if err := json.NewDecoder(in).Decode(&sections); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	ed, err := pagesync.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer ed.Close()
	out := make([]section.Section, len(sections))
	for i, s := range sections {
		out[i] = ed.Hydrate(s)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
