package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aqua-guard/internal/alert"
	"aqua-guard/internal/generator"
	"aqua-guard/internal/inference"
	"aqua-guard/internal/metrics"
	"aqua-guard/internal/model"
	"aqua-guard/internal/pipeline"
	"aqua-guard/internal/rules"
	"aqua-guard/internal/rules/builtin"
	"aqua-guard/internal/utils"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile   = flag.String("config", "configs/aqua_guard.yaml", "Configuration file path (YAML)")
		showVersion  = flag.Bool("version", false, "Show version information")
		testTelegram = flag.Bool("test-telegram", false, "Send test message to Telegram")
		rulesFile    = flag.String("rules", "", "Rules file (YAML or JSON) replacing the config's rules")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("Aqua Guard Detector v1.0.0")
		return
	}

	if err := utils.LoadEnv(); err != nil {
		fmt.Printf("Failed to load .env: %v\n", err)
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load YAML config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		config = utils.GetDefaultConfig()
		_ = config.Validate()
	} else {
		fmt.Printf("Loaded configuration from %s\n", *configFile)
	}

	if *rulesFile != "" {
		if err := config.LoadRulesFile(*rulesFile); err != nil {
			fmt.Printf("Failed to load rules: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded rules from %s\n", *rulesFile)
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format)

	if *testTelegram {
		testTelegramNotification(config, logger)
		return
	}

	fmt.Println("Aqua Guard Detector")
	fmt.Printf("ML service: %s\n", config.Inference.URL)
	fmt.Printf("Tick interval: %s\n", config.TickInterval())
	fmt.Printf("Prometheus export port: %s\n", config.Application.MetricsPort)
	if !config.IsRuleEnabled("anomaly_score") {
		fmt.Println("anomaly_score rule disabled: model scores are printed but never alert")
	}
	fmt.Println("")

	registry := metrics.CreateRegistry()
	m := metrics.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter := metrics.NewExporter(config.Application.MetricsPort, registry, logger)
	go func() {
		if err := exporter.Start(ctx); err != nil {
			logger.Errorf("Prometheus exporter error: %v", err)
		}
	}()

	engine := rules.NewEngine(logger)
	builtin.RegisterFromConfig(engine, config.Rules, logger)
	notifiers := alert.Multi{alert.NewPrometheusNotifier(m)}
	if config.Alerting.Enabled {
		notifiers = append(notifiers, alertNotifiers(config, logger)...)
	}
	engine.RegisterNotifier(notifiers)

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
	}, inference.NewHTTPPredictor(config.Inference.URL, config.InferenceTimeout()), pipeline.NewProcessor(engine), m, logger)

	runDetection(ctx, gen, engine, config)
	gen.Close()
}

func alertNotifiers(config *utils.Config, logger *logrus.Logger) alert.Multi {
	var out alert.Multi
	if config.Alerting.Channels.Log {
		out = append(out, alert.NewLogAlertNotifier(logger))
	}

	if config.Alerting.Channels.Telegram && config.Alerting.Telegram.Enabled {
		out = append(out, alert.NewTelegramNotifier(config.Alerting.Telegram, logger))
	}
	return out
}

func runDetection(ctx context.Context, gen *generator.Generator, engine *rules.Engine, config *utils.Config) {
	fmt.Println("\n=============================================== ANOMALY DETECTION ===============================================")

	points, unsubscribe := gen.Subscribe(16)
	defer unsubscribe()

	gen.Start(config.TickInterval())
	fmt.Println("Simulation started!")
	fmt.Println("")

	alertChannel := engine.GetAlertChannel()
	for {
		select {
		case a := <-alertChannel:
			printAlert(a)
		case p, ok := <-points:
			if !ok {
				return
			}
			if p.AnomalyContext != nil {
				fmt.Printf("[%s] #%d score=%.3f severity=%s\n",
					p.Timestamp.Format("2006-01-02 15:04:05"), p.Seq, p.Score(), p.AnomalyContext.Severity)
			}
		case <-ctx.Done():
			fmt.Println("\nStopping simulation...")
			return
		}
	}
}

func printAlert(a model.Alert) {
	timestamp := a.Timestamp.Format("2006-01-02 15:04:05")
	marker := "[!]"
	switch a.Severity {
	case "CRITICAL", "HIGH":
		marker = "[!!]"
	case "LOW":
		marker = "[.]"
	}
	fmt.Printf("\n%s [%s] %s - %s\n", marker, timestamp, a.Severity, a.Message)
}

func testTelegramNotification(config *utils.Config, logger *logrus.Logger) {
	telegramNotifier := alert.NewTelegramNotifier(config.Alerting.Telegram, logger)

	if !telegramNotifier.IsEnabled() {
		fmt.Println("Telegram notifier is disabled in configuration")
		return
	}

	fmt.Println("Sending test message to Telegram...")
	if err := telegramNotifier.SendTestMessage(); err != nil {
		fmt.Printf("Failed to send test message: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test message sent successfully to Telegram!")
}
