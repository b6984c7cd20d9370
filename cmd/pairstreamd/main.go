// cmd/pairstreamd — the streaming pair-analytics daemon.
//
// Pipeline: WebSocket trade feed -> rolling buffers + batched tick
// writer -> periodic OHLCV resampling -> pair analytics (hedge ratio,
// spread z-score, ADF) -> snapshots + threshold alerts. HTTP surfaces:
// query/admin API, Prometheus metrics, health.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"pairstream/config"
	"pairstream/internal/alertengine"
	"pairstream/internal/analytics"
	"pairstream/internal/api"
	"pairstream/internal/feed"
	"pairstream/internal/logger"
	"pairstream/internal/metrics"
	"pairstream/internal/model"
	"pairstream/internal/rollingbuf"
	"pairstream/internal/scheduler"
	"pairstream/internal/store/postgres"
	"pairstream/internal/store/sqlite"
	"pairstream/internal/tickwriter"
)

// instrumentedStore wraps the persistence port with write-latency
// histograms.
type instrumentedStore struct {
	model.Store
	prom *metrics.Metrics
}

func (s *instrumentedStore) AppendTicks(ctx context.Context, ticks []model.Tick) error {
	start := time.Now()
	err := s.Store.AppendTicks(ctx, ticks)
	s.prom.TickFlushDur.Observe(time.Since(start).Seconds())
	return err
}

func (s *instrumentedStore) UpsertBars(ctx context.Context, bars []model.Bar) error {
	start := time.Now()
	err := s.Store.UpsertBars(ctx, bars)
	s.prom.BarUpsertDur.Observe(time.Since(start).Seconds())
	return err
}

func (s *instrumentedStore) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	start := time.Now()
	err := s.Store.AppendSnapshot(ctx, snap)
	s.prom.SnapshotDur.Observe(time.Since(start).Seconds())
	return err
}

func openStore(ctx context.Context, dbURL string) (model.Store, error) {
	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		return postgres.Open(ctx, dbURL)
	}
	return sqlite.Open(dbURL)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	slg := logger.Init("pairstreamd", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[pairstreamd] config: %v", err)
	}
	pairX, pairY, ok := cfg.Pair()
	if !ok {
		log.Fatalf("[pairstreamd] need at least two symbols, got %v", cfg.Symbols)
	}
	slg.Info("starting",
		slog.Any("symbols", cfg.Symbols),
		slog.Any("timeframes", cfg.Timeframes),
		slog.String("pair", pairX+"/"+pairY),
		slog.Int("rolling_window", cfg.RollingWindow),
		slog.String("db_url", cfg.DBURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.New(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Store ----
	baseStore, err := openStore(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("[pairstreamd] store init: %v", err)
	}
	defer baseStore.Close()
	store := &instrumentedStore{Store: baseStore, prom: prom}

	health.CheckStore(ctx, store)
	health.StartLivenessChecker(ctx, store, 15*time.Second)

	// ---- Alert engine + sinks ----
	sinks := []alertengine.Sink{alertengine.LogSink{}}
	if cfg.AlertWebhookURL != "" {
		sinks = append(sinks, alertengine.NewWebhookSink(cfg.AlertWebhookURL))
		log.Printf("[pairstreamd] webhook sink enabled: %s", cfg.AlertWebhookURL)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[pairstreamd] WARNING: redis unreachable: %v (continuing without redis sink)", err)
		} else {
			sinks = append(sinks, alertengine.NewRedisSink(rdb, ""))
			log.Printf("[pairstreamd] redis sink enabled: %s", cfg.RedisAddr)
		}
	}
	sinks = append(sinks, alertengine.SinkFunc(func(context.Context, alertengine.Firing) error {
		prom.AlertsFired.Inc()
		return nil
	}))

	engine := alertengine.New(store, sinks...)
	if err := engine.Reload(ctx); err != nil {
		log.Fatalf("[pairstreamd] alert load: %v", err)
	}

	// ---- Rolling buffers + tick writer ----
	buf := rollingbuf.New(rollingbuf.DefaultCapacity)

	writer := tickwriter.New(store, tickwriter.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	})
	writer.OnFlush = func(n int) { prom.TicksWritten.Add(float64(n)) }
	writer.Start(ctx)

	// ---- Scheduler ----
	sched := scheduler.New(scheduler.Config{
		Symbols:           cfg.Symbols,
		Timeframes:        cfg.Timeframes,
		PairX:             pairX,
		PairY:             pairY,
		RollingWindow:     cfg.RollingWindow,
		AnalyticsInterval: cfg.AnalyticsInterval,
	}, store, buf, engine)
	sched.OnBarsWritten = func(tf model.Timeframe, n int) {
		prom.BarsWritten.WithLabelValues(string(tf)).Add(float64(n))
	}
	sched.OnSnapshot = func(res *analytics.PairResult) {
		prom.SnapshotsTotal.Inc()
		if res.ZScoreLast != nil {
			prom.ZScoreLast.Set(*res.ZScoreLast)
		}
		if res.HedgeRatio != nil {
			prom.HedgeRatio.Set(*res.HedgeRatio)
		}
	}
	sched.Start(ctx)

	// ---- Feed ----
	client := feed.New(feed.Config{
		Base:    cfg.FeedEndpointBase,
		Symbols: cfg.Symbols,
	})
	client.OnConnect = func() { health.SetFeedConnected(true) }
	client.OnReconnect = func() {
		health.SetFeedConnected(false)
		prom.FeedReconnects.Inc()
	}
	client.OnMalformed = func() { prom.MalformedTicks.Inc() }
	client.OnDropped = func() { prom.DroppedTicks.Inc() }

	tickCh := make(chan model.Tick, 10000)
	go func() {
		if err := client.Run(ctx, tickCh); err != nil {
			log.Printf("[pairstreamd] feed stopped: %v", err)
		}
		close(tickCh)
	}()

	// Ingest loop: fan each tick into the rolling buffer and the writer.
	go func() {
		for tick := range tickCh {
			prom.TicksTotal.WithLabelValues(tick.Symbol).Inc()
			health.SetLastTickTime(time.Now())
			buf.Add(tick)
			writer.Add(ctx, tick)
		}
	}()

	// ---- API ----
	apiSrv := api.New(cfg.APIAddr, store, buf, sched, engine, client, pairX, pairY)
	apiSrv.Start()

	log.Printf("[pairstreamd] running (api=%s metrics=%s)", cfg.APIAddr, cfg.MetricsAddr)

	<-sigCh
	log.Println("[pairstreamd] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sched.Stop()
	writer.Stop(shutdownCtx)
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[pairstreamd] bye")
}
