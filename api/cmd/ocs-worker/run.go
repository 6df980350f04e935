package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/answerer/registry"
	"ocs-worker/api/internal/config"
	"ocs-worker/api/internal/handle"
	"ocs-worker/api/internal/httpserver"
	"ocs-worker/api/internal/logging"
	"ocs-worker/api/internal/metrics"
	"ocs-worker/api/internal/page"
	"ocs-worker/api/internal/store"
	"ocs-worker/api/internal/telegram"
	"ocs-worker/api/internal/upload"
	"ocs-worker/api/internal/worker"
)

func newRunCmd() *cobra.Command {
	var (
		pageURL   string
		autostart bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Открыть работу в браузере и ответить на вопросы",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pageURL == "" {
				return errors.New("--url is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return run(cmd.Context(), cfg, log, pageURL, autostart)
		},
	}
	cmd.Flags().StringVar(&pageURL, "url", "", "адрес страницы с работой")
	cmd.Flags().BoolVar(&autostart, "autostart", true, "начать сразу, не дожидаясь /start")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, pageURL string, autostart bool) error {
	policy, err := upload.ParsePolicy(cfg.Worker.Upload)
	if err != nil {
		return err
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollector("ocs", reg, log)

	// --- Redis (кэш ответов) ---
	var rdb *goredis.Client
	if cfg.Cache.Addr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.Cache.Addr, Password: cfg.Cache.Password, DB: cfg.Cache.DB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unavailable, cache will miss", zap.Error(err))
		}
		cancel()
	}

	deps := registry.Deps{Log: log, CacheTTL: cfg.Cache.TTL, Observer: col}
	if rdb != nil {
		deps.Redis = rdb
	}
	providers, err := registry.Build(cfg.Answerers, deps)
	if err != nil {
		return err
	}
	agg := answerer.NewAggregator(log, providers...).WithObserver(col)

	// --- Postgres ---
	db, archive, err := openArchive(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// --- Browser ---
	sess, err := page.Open(ctx, cfg.Browser, pageURL, log)
	if err != nil {
		return err
	}
	defer sess.Close()
	items, err := sess.Items(ctx)
	if err != nil {
		return err
	}
	log.Info("questions found", zap.Int("items", len(items)))

	// --- Telegram ---
	var bot *tgbotapi.BotAPI
	notifier := &telegram.Notifier{Log: log}
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot.Debug = false
		notifier.Bot, notifier.ChatID = bot, cfg.Telegram.ChatID
	}

	// --- Worker ---
	ctl := worker.NewControl()
	ctl.Notify(col.SetState)
	ctl.Notify(notifier.State)
	seq := 0
	w, err := worker.New(cfg.WorkerConfig(), agg, page.Apply,
		worker.WithLogger(log),
		worker.WithRecorder(col),
		worker.WithControl(ctl),
		worker.WithOnResult(func(res worker.Result) {
			notifier.Result(seq, res)
			seq++
		}),
	)
	if err != nil {
		return err
	}

	// --- HTTP ---
	var pinger httpserver.Pinger
	var runs handle.Runs
	if db != nil {
		pinger, runs = db, archive
	}
	mux := httpserver.NewMux(pinger, reg)
	handle.New(w, runs, log).Register(mux)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return httpserver.Serve(gctx, "0.0.0.0:"+cfg.HTTP.Port, mux, log)
	})
	if bot != nil {
		router := &telegram.Router{Bot: bot, ChatID: cfg.Telegram.ChatID, Worker: w, Log: log}
		poller := telegram.NewPoller(bot, log)
		g.Go(func() error {
			poller.Run(gctx, router.HandleUpdate)
			return nil
		})
	}
	g.Go(func() error {
		// после прогона гасим HTTP и поллинг
		defer cancel()
		return work(gctx, w, items, policy, sess.Callback(), archive, cfg.Database.Retention, col, notifier, log)
	})

	if autostart {
		ctl.Start()
	}
	return g.Wait()
}

// work — прогон, решение о сдаче и сохранение итога.
func work(ctx context.Context, w *worker.Worker, items []worker.Item, policy upload.Policy, cb upload.Callback,
	archive *store.Archive, retention time.Duration, col *metrics.Collector, n *telegram.Notifier, log *zap.Logger) error {
	results, runErr := w.Run(ctx, items)
	if runErr != nil && ctx.Err() != nil {
		// отмена снаружи (SIGTERM): сдавать не к чему
		return nil
	}
	if runErr != nil {
		n.Error(runErr)
	}

	finished, total := worker.Count(results)
	d, err := upload.Handle(ctx, policy, finished, total, cb)
	col.SetFinishedRate(d.Rate)
	if err != nil {
		log.Error("upload failed", zap.Error(err))
		n.Error(err)
	}
	n.Upload(d, finished, total)
	log.Info("run done",
		zap.Int("finished", finished), zap.Int("total", total),
		zap.Float64("rate", d.Rate), zap.Stringer("action", d.Action))

	if archive != nil {
		row := store.RunRow{
			RunID:    w.ID(),
			Total:    total,
			Finished: finished,
			Rate:     d.Rate,
			Policy:   string(policy),
			Action:   d.Action.String(),
		}
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := archive.Save(saveCtx, row, worker.Summarize(results)); err != nil {
			log.Error("save run", zap.Error(err))
		} else if retention > 0 {
			if purged, err := archive.PurgeOlderThan(saveCtx, retention); err != nil {
				log.Warn("purge old results", zap.Error(err))
			} else if purged > 0 {
				log.Info("old results purged", zap.Int64("rows", purged))
			}
		}
	}
	return runErr
}

func openArchive(ctx context.Context, c config.DatabaseConfig, log *zap.Logger) (*sql.DB, *store.Archive, error) {
	if c.DSN == "" {
		log.Info("database disabled: DSN is empty")
		return nil, nil, nil
	}
	db, err := sql.Open("pgx", c.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxOpenConns)
	db.SetConnMaxLifetime(c.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db.Ping: %w", err)
	}
	if _, err := db.ExecContext(pingCtx, store.Schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("db connected", zap.String("dsn", config.SafeDSN(c.DSN)))
	return db, store.NewArchive(db), nil
}
