package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"greenlist/internal/assist"
	"greenlist/internal/greenlist"
	"greenlist/internal/httpx"
	"greenlist/internal/linkguard"
	"greenlist/internal/linkguard/liveness"
	"greenlist/internal/linkguard/policy"
	"greenlist/internal/logx"
	"greenlist/internal/openai"
	"greenlist/internal/search"
	"greenlist/internal/store"
)

func main() {
	svc := "api"

	runtimeCfg, err := httpx.LoadRuntimeConfig(svc)
	if err != nil {
		fatal(svc, "load config", err, nil)
	}
	svc = runtimeCfg.Service
	if err := logx.SetLevel(runtimeCfg.LogLevel); err != nil {
		fatal(svc, "log level", err, nil)
	}
	if runtimeCfg.Links.Debug && !logx.DebugEnabled() {
		_ = logx.SetLevel("debug")
	}

	metrics := httpx.NewMetrics(svc)

	db, err := sql.Open(runtimeCfg.Database.Driver, runtimeCfg.Database.DSN)
	if err != nil {
		fatal(svc, "open db", err, nil)
	}
	defer db.Close()
	db.SetMaxOpenConns(runtimeCfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(runtimeCfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(runtimeCfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), runtimeCfg.Database.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fatal(svc, "ping db", err, nil)
	}
	repo := store.New(db, metrics)

	var searchClient *search.Client
	if runtimeCfg.Search.URL != "" {
		searchClient = search.New(runtimeCfg.Search.URL, metrics)
		if err := searchClient.EnsureIndex(ctx); err != nil {
			fatal(svc, "ensure index", err, nil)
		}
	} else {
		logx.Warn(svc, "search disabled", map[string]any{"reason": "MEILI_URL not set"})
	}

	pol, err := policy.FromFile(runtimeCfg.Links.PolicyFile)
	if err != nil {
		fatal(svc, "load policy", err, map[string]any{"file": runtimeCfg.Links.PolicyFile})
	}
	logx.Info(svc, "policy loaded", map[string]any{"stats": pol.Stats()})

	prober := liveness.New(pol,
		liveness.WithClient(liveness.NewClient(runtimeCfg.Links.MaxRedirects)),
		liveness.WithStore(liveness.NewSweepingStore(runtimeCfg.Links.TTL, runtimeCfg.Links.Sweep)),
		liveness.WithTTL(runtimeCfg.Links.TTL),
		liveness.WithTimeout(runtimeCfg.Links.Timeout),
		liveness.WithMetrics(metrics),
	)
	sanitizer := linkguard.New(pol, prober,
		linkguard.WithMetrics(metrics),
		linkguard.WithDebug(runtimeCfg.Links.Debug),
		linkguard.WithService(svc),
	)

	llm := openai.New(runtimeCfg.OpenAI.BaseURL, runtimeCfg.OpenAI.APIKey, metrics)
	assistant := assist.New(assist.Config{
		ChatModel:           runtimeCfg.OpenAI.ChatModel,
		EmbeddingModel:      runtimeCfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: runtimeCfg.OpenAI.EmbeddingDimensions,
		Trace:               runtimeCfg.Links.Debug,
	}, llm, llm, repo, sanitizer)

	job := &greenlist.Job{
		Loader:   newLoader(runtimeCfg, llm, repo, searchClient),
		URLsFile: runtimeCfg.Loader.URLsFile,
		Feeds:    runtimeCfg.Loader.Feeds,
	}

	serverCfg := httpx.Config{
		Store:     repo,
		Assistant: assistant,
		Sanitizer: sanitizer,
		Loader:    job,
		Policy:    pol,
		Metrics:   metrics,
		Service:   svc,
	}
	if searchClient != nil {
		serverCfg.Search = searchClient
	}
	srv := httpx.NewServer(serverCfg)
	httpx.RegisterConfigRoute(srv, runtimeCfg)

	addr := runtimeCfg.HTTP.Addr

	serverErrCh := make(chan error, 1)
	go func() {
		logx.Info(svc, "listening", map[string]any{"addr": addr})
		serverErrCh <- srv.Start(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serverErrCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			logx.Info(svc, "server stopped", map[string]any{"addr": addr})
			return
		}
		fatal(svc, "server", err, map[string]any{"addr": addr})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), runtimeCfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error(svc, "shutdown", err, nil)
	}

	if err := <-serverErrCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(svc, "server", err, map[string]any{"addr": addr})
	}
	logx.Info(svc, "server stopped", map[string]any{"addr": addr})
}

// newLoader leaves the indexer unset when search is disabled so the loader
// does not hold a typed nil.
func newLoader(cfg httpx.RuntimeConfig, llm *openai.Client, repo *store.Store, searchClient *search.Client) *greenlist.Loader {
	var indexer greenlist.Indexer
	if searchClient != nil {
		indexer = searchClient
	}
	return greenlist.New(greenlist.Config{
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		FetchPages:     cfg.Loader.FetchPages,
	}, llm, repo, indexer, greenlist.NewFetcher(0))
}

func fatal(service, msg string, err error, extra map[string]any) {
	logx.Error(service, msg, err, extra)
	os.Exit(1)
}
