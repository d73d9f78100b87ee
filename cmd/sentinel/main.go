package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/config"
	"BreakoutSentinel/internal/logger"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/monitor"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/scheduler"
	"BreakoutSentinel/internal/store"
	"BreakoutSentinel/internal/universe"
	"BreakoutSentinel/internal/web"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.StringP("config", "c", "configs/config.yaml", "path to config file (env CONFIG_PATH)")
	envPath := flag.String("env-file", ".env", "optional dotenv file with secrets")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && !flag.CommandLine.Changed("config") {
		*cfgPath = v
	}

	if err := run(*cfgPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, envPath string) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputFile: cfg.Log.OutputFile})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("BreakoutSentinel starting", zap.String("config", cfgPath))

	loc := cfg.Location()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := collector.NewHTTPClient(cfg.Proxy, cfg.Monitor.CallTimeout)

	ul := &universe.Loader{URL: cfg.Universe.URL, File: cfg.Universe.File, Client: client, Log: log}
	symbols := ul.Load(ctx)

	// Init price source
	yahoo := collector.NewYahooFetcher(cfg.DataSource.YahooBaseURL, cfg.DataSource.Suffix, client)
	nse := collector.NewNSEFetcher(cfg.DataSource.NSEBaseURL, client)

	var highs collector.HighFetcher = yahoo
	hc, err := collector.NewHighCache(cfg.DataSource.CachePath, yahoo, log)
	if err != nil {
		log.Warn("high cache unavailable, fetching highs directly", zap.Error(err))
	} else {
		defer hc.Close()
		highs = hc
		keep := model.PriorMonth(time.Now().In(loc)).Key()
		if n, err := hc.Prune(ctx, keep); err != nil {
			log.Warn("prune high cache", zap.Error(err))
		} else if n > 0 {
			log.Info("pruned stale highs", zap.Int64("rows", n), zap.String("kept", keep))
		}
	}
	source := collector.NewSource(
		[]collector.QuoteFetcher{nse, yahoo},
		[]collector.HighFetcher{highs},
		cfg.Monitor.CallTimeout, loc, log,
	)

	// Init store
	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis not reachable yet", zap.String("addr", cfg.Store.Redis.Addr), zap.Error(err))
		}
		st = store.NewRedisStore(rdb, cfg.Store.Redis.Key, log)
	default:
		st = store.NewFileStore(cfg.Store.Path, log)
	}
	log.Info("store ready", zap.String("backend", cfg.Store.Backend))

	// Init notification channels
	channels := notifier.Fanout{
		notifier.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username,
			cfg.Email.Password, cfg.Email.From, cfg.Email.Recipients),
	}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, client)
		channels = append(channels, tn)
	}
	log.Info("alert channels", zap.Int("channels", len(channels)), zap.Int("recipients", len(cfg.Email.Recipients)))

	mon := monitor.New(source, st, channels, log,
		monitor.WithConcurrency(cfg.Monitor.Concurrency),
		monitor.WithAlertTimeout(cfg.Monitor.CallTimeout),
	)

	sched := scheduler.NewScheduler(ctx, mon, st, symbols, log)
	if err := sched.Register(cfg.Monitor.Interval); err != nil {
		return err
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand, log)
		log.Info("telegram polling started")
	}

	view := web.NewView(st, loc, log)
	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           view.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("view listening", zap.String("addr", cfg.Web.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("view server", zap.Error(err))
		}
	}()

	// First cycle runs right away; cron ticks skip while it is in flight.
	sched.RunInBackground()
	sched.Start()

	log.Info("BreakoutSentinel is running", zap.Duration("interval", cfg.Monitor.Interval), zap.Int("symbols", len(symbols)))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	cancel()
	sched.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("view shutdown", zap.Error(err))
	}

	log.Info("BreakoutSentinel stopped")
	return nil
}
