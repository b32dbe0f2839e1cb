// cmd/search-proxy/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/provider/yelp"
	"quiz-recommender/internal/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	provider := yelp.NewClient(cfg.Provider, log)
	if !provider.HasCredential() {
		zapLog.Warn("Provider API key not set, search requests will report a configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLog.Info("Starting search proxy...",
		zap.String("address", cfg.Proxy.Address),
		zap.String("provider", cfg.Provider.BaseURL),
	)
	if err := proxy.New(cfg.Proxy, provider, log).ListenAndServe(ctx); err != nil {
		zapLog.Fatal("search proxy failed", zap.Error(err))
	}
	zapLog.Info("Search proxy stopped gracefully")
}
