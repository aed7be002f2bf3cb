package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vitos/crypto_trade_level/internal/domain"
	"github.com/vitos/crypto_trade_level/internal/infrastructure/config"
	"github.com/vitos/crypto_trade_level/internal/infrastructure/exchange"
	"github.com/vitos/crypto_trade_level/internal/infrastructure/logger"
	"github.com/vitos/crypto_trade_level/internal/infrastructure/metrics"
	"github.com/vitos/crypto_trade_level/internal/infrastructure/storage"
	"github.com/vitos/crypto_trade_level/internal/usecase"
	"github.com/vitos/crypto_trade_level/internal/web"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	adapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint)
	observer := metrics.NewObserver()
	hub := usecase.NewSubscriptionHub(usecase.SubscriptionHubConfig{
		QueueSize:     cfg.Hub.LoggerQueueLimit,
		DropThreshold: cfg.Hub.LoggerDropHaltThreshold,
		Observer:      observer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelines := make(map[string]*usecase.SymbolPipeline, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		p := usecase.NewSymbolPipeline(usecase.SymbolPipelineConfig{
			Symbol:    symbol,
			Publisher: hub,
			Observer:  observer,
			Logger:    log,
			RampConfig: domain.SizingRampConfig{
				StartingMargin: 100,
				MinMargin:      10,
				RampStepPct:    50,
				RampDecayPct:   50,
				RampMaxMult:    2,
			},
		})
		pipelines[symbol] = p

		// The persisted ramp state is only logged here; the pipeline's ramp
		// still starts from RampConfig.StartingMargin.
		if state, ok, err := store.LoadRampState(ctx, symbol); err != nil {
			log.Error("failed to load ramp state", zap.String("symbol", symbol), zap.Error(err))
		} else if ok {
			log.Info("found persisted ramp state", zap.String("symbol", symbol), zap.Float64("budget", state.CurrentMarginBudget))
		}

		go func(symbol string, p *usecase.SymbolPipeline) {
			if err := p.Run(ctx, adapter, adapter, adapter, adapter); err != nil {
				log.Error("pipeline stopped", zap.String("symbol", symbol), zap.Error(err))
			}
		}(symbol, p)
	}

	go persistPipelineState(ctx, store, pipelines, log)

	session := web.NewExecutionSession(cfg.Execution.MaxLeverage)
	server := web.NewServer(
		web.Addr(cfg.Server.Host, cfg.Server.Port),
		hub, session, cfg.Symbols, cfg.Server.AllowedOrigins, log,
	)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("admin server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown(shutdownCtx))
	if shutdownErr != nil {
		log.Error("error during shutdown", zap.Error(shutdownErr))
	}
}

// persistPipelineState periodically snapshots each symbol's sizing ramp
// budget and most recent envelope to sqlite, so the last ramp level and the
// book state a pipeline last published are on record. Nothing in this
// process reads them back into a running pipeline.
func persistPipelineState(ctx context.Context, store *storage.SQLiteStore, pipelines map[string]*usecase.SymbolPipeline, log *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for symbol, p := range pipelines {
				nowMs := time.Now().UnixMilli()

				state := p.Ramp.State()
				if err := store.SaveRampState(ctx, symbol, state, nowMs); err != nil {
					log.Error("failed to persist ramp state", zap.String("symbol", symbol), zap.Error(err))
				}

				env, ok := p.Assembler.LastEnvelope()
				if !ok {
					continue
				}
				payload, err := json.Marshal(env)
				if err != nil {
					log.Error("failed to marshal envelope snapshot", zap.String("symbol", symbol), zap.Error(err))
					continue
				}
				if err := store.SaveEnvelopeSnapshot(ctx, symbol, env.CanonicalTimeMs, string(env.State), env.Price, string(payload)); err != nil {
					log.Error("failed to persist envelope snapshot", zap.String("symbol", symbol), zap.Error(err))
				}
			}
		}
	}
}
