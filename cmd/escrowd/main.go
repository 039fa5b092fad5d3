package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"SlaEscrow/internal/calculator"
	"SlaEscrow/internal/collector"
	"SlaEscrow/internal/config"
	"SlaEscrow/internal/escrow"
	"SlaEscrow/internal/httpapi"
	"SlaEscrow/internal/ledger"
	"SlaEscrow/internal/metrics"
	"SlaEscrow/internal/model"
	"SlaEscrow/internal/notifier"
	"SlaEscrow/internal/period"
	"SlaEscrow/internal/recorder"
	"SlaEscrow/internal/scheduler"
	"SlaEscrow/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "escrowd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath, ".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := log.NewLogger(os.Stdout, log.LevelOption(level))
	logger.Info("escrowd starting", "config", cfgPath, "store", cfg.Database.Store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init feeds
	feeds, err := buildFeeds(cfg)
	if err != nil {
		return err
	}
	logger.Info("sli feeds registered", "sources", feeds.Sources())

	for _, p := range []string{cfg.Database.SQLitePath, cfg.Database.StateFile, cfg.Database.HistoryPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// Init ledger
	book, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	// Init agreement store
	agreements, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer agreements.Close()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.HistoryPath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.HistoryPath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", "err", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init locker
	var locker escrow.Locker = escrow.NewMemoryLocker()
	redisClient, err := escrow.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = escrow.NewRedisLocker(redisClient, cfg.Redis.LockTTL, logger)
		logger.Info("using redis agreement locks", "ttl", cfg.Redis.LockTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gov, err := cfg.GovernanceParams()
	if err != nil {
		return err
	}
	vcfg, err := cfg.ValidationConfig()
	if err != nil {
		return err
	}
	clock := period.SystemClock{}
	svc, err := escrow.New(agreements, book, feeds, escrow.Config{
		Governance:             gov,
		Validation:             vcfg,
		RequireFinalValidation: cfg.Validation.RequireFinal,
		RegistryCapacity:       cfg.Registry.Capacity,
		Protocol:               model.Account(cfg.Governance.ProtocolAccount),
	},
		escrow.WithLogger(logger),
		escrow.WithMetrics(m),
		escrow.WithRecorder(rec),
		escrow.WithClock(clock),
		escrow.WithLocker(locker),
	)
	if err != nil {
		return fmt.Errorf("init escrow: %w", err)
	}
	if err := svc.Restore(ctx); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var n scheduler.Notifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		n = tn
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, svc, n, clock, logger)
	if err := sched.RegisterAll(cfg.Schedule.ValidateCron, cfg.Schedule.ReportCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, validating due periods now")
		go sched.RunValidateNow()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(svc, logger).Router(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		logger.Info("telegram polling started")
	}

	err = g.Wait()
	logger.Info("escrowd stopped")
	return err
}

func buildFeeds(cfg *config.Config) (*collector.Collector, error) {
	col := collector.NewCollector()
	for _, f := range cfg.Feeds {
		switch f.Kind {
		case config.FeedHTTP:
			col.Register(collector.NewHTTPFeed(f.Source, f.URL, f.APIKey, cfg.Proxy))
		case config.FeedPrometheus:
			pf, err := collector.NewPrometheusFeed(f.Source, f.URL, f.Query, cfg.Proxy)
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", f.Source, err)
			}
			col.Register(pf)
		case config.FeedStatic:
			v, err := calculator.ParseDec(f.Value)
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", f.Source, err)
			}
			sf := collector.NewStaticFeed(f.Source, collector.Reading{Value: v})
			sf.Now = time.Now
			col.Register(sf)
		}
	}
	return col, nil
}

func openStore(cfg *config.Config, logger log.Logger) (store.AgreementStore, error) {
	switch cfg.Database.Store {
	case config.StoreFile:
		s, err := store.NewFile(cfg.Database.StateFile)
		if err != nil {
			return nil, fmt.Errorf("open state file: %w", err)
		}
		return s, nil
	case config.StoreMemory:
		return store.NewMemory(), nil
	default:
		s, err := store.NewSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	}
}

// openLedger returns the balance book matching the agreement store. A
// persistent store keeps its balances in the SQLite database, where genesis
// credits are applied only once.
func openLedger(ctx context.Context, cfg *config.Config, logger log.Logger) (ledger.Ledger, func() error, error) {
	credits := make([]ledger.Credit, 0, len(cfg.Ledger.Genesis))
	for _, b := range cfg.Ledger.Genesis {
		credits = append(credits, ledger.Credit{Token: model.Token(b.Token), Account: model.Account(b.Account), Amount: b.Amount})
	}

	if cfg.Database.Store == config.StoreMemory {
		mem := ledger.NewMemory()
		for _, c := range credits {
			if err := mem.Credit(c.Token, c.Account, c.Amount); err != nil {
				return nil, nil, fmt.Errorf("ledger genesis: %w", err)
			}
		}
		return mem, func() error { return nil }, nil
	}

	l, err := ledger.NewSQLite(cfg.Database.SQLitePath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	applied, err := l.Seed(ctx, credits)
	if err != nil {
		l.Close()
		return nil, nil, fmt.Errorf("ledger genesis: %w", err)
	}
	logger.Info("ledger ready", "path", cfg.Database.SQLitePath, "genesis_applied", applied)
	return l, l.Close, nil
}
