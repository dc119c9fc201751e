package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aqua-guard/api/internal/handlers"
	"aqua-guard/api/internal/storage"
	"aqua-guard/internal/alert"
	"aqua-guard/internal/generator"
	"aqua-guard/internal/inference"
	"aqua-guard/internal/metrics"
	"aqua-guard/internal/pipeline"
	"aqua-guard/internal/rules"
	"aqua-guard/internal/rules/builtin"
	"aqua-guard/internal/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configFile = flag.String("config", "configs/aqua_guard.yaml", "Configuration file path (YAML)")
		port       = flag.String("port", "", "API server port (overrides config)")
		rulesFile  = flag.String("rules", "", "Rules file (YAML or JSON) replacing the config's rules")
	)
	flag.Parse()

	if err := utils.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		config.Application.APIPort = *port
	}
	if *rulesFile != "" {
		if err := config.LoadRulesFile(*rulesFile); err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format)

	registry := metrics.CreateRegistry()
	m := metrics.NewMetrics(registry)

	store := storage.NewStorage(config.Alerting.MaxStored, logger)
	store.SetRules(config.Rules)

	engine := rules.NewEngine(logger)
	n := builtin.RegisterFromConfig(engine, config.Rules, logger)
	logger.Infof("[Rules] %d rules registered", n)
	if !config.IsRuleEnabled("anomaly_score") {
		logger.Warn("[Rules] anomaly_score is disabled, model scores will not raise alerts")
	}

	notifiers := alert.Multi{store, alert.NewPrometheusNotifier(m)}
	if config.Alerting.Enabled {
		notifiers = append(notifiers, alertChannels(config, logger)...)
	}
	engine.RegisterNotifier(notifiers)

	predictor := inference.NewHTTPPredictor(config.Inference.URL, config.InferenceTimeout())
	logger.Infof("[Inference] ML service at %s", config.Inference.URL)

	gen := generator.New(generator.Options{
		Interval:        config.TickInterval(),
		BackfillHours:   config.Generator.BackfillHours,
		HistoryCapacity: config.Generator.HistoryCapacity,
		Seed:            config.Generator.Seed,
		Location:        config.Location(),
		Inference: inference.Config{
			SequenceLength: config.Inference.SequenceLength,
			CacheSize:      config.Inference.CacheSize,
			CacheTTL:       config.CacheTTL(),
			Timeout:        config.InferenceTimeout(),
		},
	}, predictor, pipeline.NewProcessor(engine), m, logger)
	defer gen.Close()

	if config.Application.AutoStart {
		gen.Start(config.TickInterval())
		logger.Infof("[Generator] Ticking every %s", config.TickInterval())
	}

	h := handlers.NewHandlers(gen, store, logger)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	h.Register(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Application.APIPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server starting on port %s", config.Application.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return metrics.NewExporter(config.Application.MetricsPort, registry, logger).Start(ctx)
	})

	// The store and notifiers already receive every alert; drain the engine
	// channel so it never fills up.
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case a := <-engine.GetAlertChannel():
				logger.Debugf("[Rules] %s alert on %s", a.Type, a.Component)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server failed: %v", err)
		gen.Close()
		os.Exit(1)
	}
	logger.Info("Stopped")
}

func alertChannels(config *utils.Config, logger *logrus.Logger) alert.Multi {
	var out alert.Multi
	if config.Alerting.Channels.Log {
		out = append(out, alert.NewLogAlertNotifier(logger))
	}
	if config.Alerting.Channels.Telegram {
		tg := alert.NewTelegramNotifier(config.Alerting.Telegram, logger)
		if tg.IsEnabled() {
			out = append(out, tg)
			logger.Info("[Alerting] Telegram notifier enabled")
		} else {
			logger.Warn("[Alerting] Telegram channel requested but telegram.enabled is false")
		}
	}
	return out
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigins := []string{
			"http://localhost:5000",
			"http://localhost:3000",
			"http://127.0.0.1:5000",
			"http://127.0.0.1:3000",
		}

		allowOrigin := "*"
		if origin != "" {
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					allowOrigin = origin
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if allowOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
