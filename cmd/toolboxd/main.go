package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anandukch/localtoolbox/pkg/bridge"
	"github.com/anandukch/localtoolbox/pkg/config"
	"github.com/anandukch/localtoolbox/pkg/history/sqlstore"
	"github.com/anandukch/localtoolbox/pkg/mcpserver"
	"github.com/anandukch/localtoolbox/pkg/otel"
	"github.com/anandukch/localtoolbox/pkg/setup"
	"github.com/anandukch/localtoolbox/pkg/tool"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var (
		showVersion bool
		addr        string
		configPath  string
		historyURL  string
		serveMCP    bool
	)

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&addr, "addr", getEnv("TOOLBOX_ADDR", ""), "http listen address (overrides config)")
	flag.StringVar(&configPath, "config", getEnv("TOOLBOX_CONFIG", "tools.yaml"), "path to the tool catalog")
	flag.StringVar(&historyURL, "history-url", getEnv("TOOLBOX_HISTORY_URL", ""), "history database url (overrides config)")
	flag.BoolVar(&serveMCP, "mcp", false, "serve MCP on stdin/stdout instead of HTTP")
	flag.Parse()

	if showVersion {
		fmt.Printf("toolboxd %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	if err := run(addr, configPath, historyURL, serveMCP); err != nil {
		fmt.Fprintf(os.Stderr, "toolboxd: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, configPath, historyURL string, serveMCP bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdownOtel, err := otel.Init(ctx, otel.FromEnv())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownOtel(context.Background()) }()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Addr
	}
	if historyURL == "" {
		historyURL = cfg.HistoryURL
	}

	reg, err := config.BuildRegistry(cfg)
	if err != nil {
		return err
	}
	for _, problem := range reg.Verify() {
		log.Warn("tool target missing", zap.String("problem", problem))
	}

	store, err := sqlstore.Open(ctx, historyURL)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate history store: %w", err)
	}

	inv := tool.NewInvoker(reg,
		tool.WithLogger(log),
		tool.WithHistory(store),
	)

	st := setup.Probe(ctx, cfg.Checks)
	for name, ok := range st.Checks {
		if !ok {
			log.Warn("setup check failed", zap.String("check", name))
		}
	}

	if serveMCP {
		mcp, err := mcpserver.New(ctx)
		if err != nil {
			return err
		}
		if err := mcp.RegisterFromRegistry(reg, inv); err != nil {
			return err
		}
		log.Info("serving mcp on stdio", zap.Int("tools", reg.Len()))
		return mcp.ServeStdio(ctx)
	}

	srv := bridge.New(reg, inv,
		bridge.WithLogger(log),
		bridge.WithHistory(store),
		bridge.WithChecks(cfg.Checks),
	)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.Int("tools", reg.Len()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
