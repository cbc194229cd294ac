// File path: cmd/planforge/main.go
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/planforge/planforge/internal/api"
	"github.com/planforge/planforge/internal/cache"
	"github.com/planforge/planforge/internal/catalog"
	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/docgen"
	"github.com/planforge/planforge/internal/llm"
	"github.com/planforge/planforge/internal/queue"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("planforge: .env file not loaded", "error", err)
	} else {
		logger.Info("planforge: environment loaded from .env")
	}

	addr := flag.String("addr", "", "listen address (overrides config)")
	configPath := flag.String("config", "", "path to YAML configuration file")
	catalogPath := flag.String("catalog", "", "path to the SQLite catalog database (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("planforge: configuration load failed", "error", err)
		fmt.Println("configuration error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*addr); trimmed != "" {
		cfg.Addr = trimmed
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		cfg.CatalogPath = trimmed
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("planforge: configuration invalid", "error", err)
		fmt.Println("configuration error:", err)
		os.Exit(1)
	}
	logger.Info("planforge: startup initiated", "addr", cfg.Addr, "catalog", cfg.CatalogPath)

	if dir := filepath.Dir(cfg.CatalogPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("planforge: catalog directory creation failed", "dir", dir, "error", err)
			fmt.Println("catalog error:", err)
			os.Exit(1)
		}
	}
	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		logger.Error("planforge: catalog open failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	defer store.Close()

	provider := llm.NewProvider(cfg.Provider, cfg.Model, cfg.RateLimited)
	logger.Info("planforge: llm provider ready", "provider", provider.Name(), "rate_limited", provider.RateLimited())

	taskQueue := queue.New(cfg.MaxConcurrent)
	defer taskQueue.Close()

	generationCache := cache.New[[]docgen.GeneratedDocument](cfg.CacheMaxSize, cfg.CacheTTL())

	events := api.NewEventHub()
	orch := docgen.NewOrchestrator(provider, taskQueue, generationCache, docgen.Settings{
		MaxRetries:      cfg.MaxRetries,
		UseCache:        cfg.UseCache,
		DocumentTimeout: cfg.DocumentTimeout,
	},
		docgen.WithMappingStore(store),
		docgen.WithNotifier(events.Notifier()),
	)

	server, err := api.NewServer(orch, provider, store, taskQueue, generationCache, events)
	if err != nil {
		logger.Error("planforge: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("planforge: server listening", "addr", cfg.Addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", cfg.Addr)
	reachable := cfg.Addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("planforge: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		logger.Error("planforge: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
