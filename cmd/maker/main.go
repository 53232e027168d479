// Command maker runs the market-making pipeline: venue feed in, order
// books reconstructed, quotes proposed through the risk gate, wagers
// managed against the venue, state snapshotted for restart.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/book"
	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/dash"
	"github.com/doug4987/New-MM-Test/internal/feed"
	"github.com/doug4987/New-MM-Test/internal/ops"
	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/recorder"
	"github.com/doug4987/New-MM-Test/internal/risk"
	"github.com/doug4987/New-MM-Test/internal/schema"
	"github.com/doug4987/New-MM-Test/internal/store"
	"github.com/doug4987/New-MM-Test/internal/strategy"
	"github.com/doug4987/New-MM-Test/internal/venue"
	"github.com/doug4987/New-MM-Test/internal/wager"
)

const bookPartitions = 8

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	captureDir := flag.String("capture-dir", "", "Record the raw venue stream to JSONL in this directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if loaded.DryRun {
		logs.Info("running in dry-run mode, no live orders will be placed")
	}

	stopProfiler := startProfiler(loaded.Profile)
	defer stopProfiler()

	st, err := openStore(ctx, loaded.Store)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	events := bus.New()
	defer events.Close()

	books := book.NewStore()
	engine := book.NewEngine(books, events, bookPartitions, loaded.BusDepth)
	tracker := position.NewTracker()
	gate := risk.NewGate(loaded.Risk, tracker)

	var orders venue.OrderAdapter
	if loaded.DryRun {
		orders = venue.NewDryRunAdapter()
	} else {
		orders = venue.NewLiveOrderAdapter(loaded.Order)
	}
	manager := wager.NewManager(loaded.Wager, orders, tracker, events)

	restoreState(ctx, st, books, tracker, manager)

	depth := loaded.BusDepth
	if depth <= 0 {
		depth = 1024
	}
	stratSub := events.Subscribe("strategy", depth)
	dashSub := events.Subscribe("dashboard", depth)

	maker := strategy.NewMaker(strategy.Config{
		Name:            loaded.Strategy.Name,
		Stake:           loaded.Strategy.Stake,
		SpreadMargin:    loaded.Strategy.SpreadMargin,
		RefreshInterval: loaded.Strategy.RefreshInterval,
		SkewThreshold:   loaded.Strategy.SkewThreshold,
		MaxPositionSize: loaded.Strategy.MaxPositionSize,
	}, books, tracker, gate, manager, stratSub)

	hub := dash.NewHub(dashSub)
	server := dash.NewServer(loaded.Dash.Addr, books, tracker, manager, hub)

	var capture *recorder.Writer
	if *captureDir != "" {
		capture, err = recorder.NewWriter(recorder.WriterConfig{Dir: *captureDir, Prefix: "maker"})
		if err != nil {
			log.Fatalf("capture open failed: %v", err)
		}
		defer capture.Close()
		logs.Infof("capturing venue stream to %s", capture.Path())
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { engine.Run(ctx) })
	run(func() { maker.Run(ctx) })
	run(func() { hub.Run(ctx) })
	if loaded.Dash.Addr != "" {
		run(func() { server.Start(ctx) })
	}
	if interval := time.Duration(loaded.Store.SaveIntervalMs) * time.Millisecond; interval > 0 {
		run(func() { saveLoop(ctx, interval, st, books, tracker, manager) })
	}

	normalizer := feed.NewNormalizer()
	onMarket := func(raw []byte) {
		record(capture, recorder.ChannelMarketUpdates, raw)
		for _, u := range normalizer.Normalize(raw) {
			if err := engine.Submit(ctx, book.Batch{Market: u.Market, Changes: u.Changes}); err != nil {
				return
			}
		}
	}
	onWager := func(raw []byte) {
		record(capture, recorder.ChannelWagerUpdates, raw)
		if update, ok := normalizer.ParseWagerUpdate(raw); ok {
			manager.OnStatus(update)
		}
	}

	if loaded.Feed.URL != "" {
		venueFeed := venue.NewFeed(ctx, loaded.Feed)
		if err := venueFeed.Start(ctx); err != nil {
			log.Fatalf("venue feed start failed: %v", err)
		}
		defer venueFeed.Close()
		if err := venueFeed.Subscribe(ctx); err != nil {
			log.Fatalf("venue feed subscribe failed: %v", err)
		}
		unsubscribe := venueFeed.Observe(ctx, onMarket, onWager)
		defer unsubscribe()
	} else {
		logs.Warn("no feed url configured, running without a live venue stream")
	}

	<-ctx.Done()
	logs.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.CancelAll(shutdownCtx)
	saveState(shutdownCtx, st, books, tracker, manager)

	wg.Wait()
}

func openStore(ctx context.Context, cfg ops.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return store.NewPostgres(store.PostgresOption{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	case "redis":
		return store.NewRedis(ctx, store.RedisOption{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return store.NewMemory(), nil
	}
}

func restoreState(ctx context.Context, st store.Store, books *book.Store, tracker *position.Tracker, manager *wager.Manager) {
	snap, err := st.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoSnapshot) {
			logs.Warnf("load snapshot, err: %+v", err)
		}
		return
	}
	books.Restore(snap.Books)
	tracker.Restore(snap.Positions, snap.Risk)
	manager.Restore(snap.OpenWagers)
	logs.Infof("restored %d books, %d positions, %d open wagers",
		len(snap.Books), len(snap.Positions), len(snap.OpenWagers))
}

func saveState(ctx context.Context, st store.Store, books *book.Store, tracker *position.Tracker, manager *wager.Manager) {
	positions, riskSnap := tracker.Snapshot()
	err := st.Save(ctx, buildSnapshot(books, positions, riskSnap, manager))
	if err != nil {
		logs.Errorf("save snapshot, err: %+v", err)
	}
}

func buildSnapshot(books *book.Store, positions []schema.PositionSnapshot, riskSnap schema.RiskSnapshot, manager *wager.Manager) schema.Snapshot {
	return schema.Snapshot{
		Timestamp:  time.Now().UTC().UnixNano(),
		Books:      books.Snapshot(),
		Positions:  positions,
		Risk:       riskSnap,
		OpenWagers: manager.Open(),
	}
}

func saveLoop(ctx context.Context, interval time.Duration, st store.Store, books *book.Store, tracker *position.Tracker, manager *wager.Manager) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveState(ctx, st, books, tracker, manager)
		}
	}
}

func record(capture *recorder.Writer, channel string, raw []byte) {
	if capture == nil {
		return
	}
	payload := make([]byte, len(raw))
	copy(payload, raw)
	_ = capture.Append(recorder.Record{Ts: recorder.Now(), Channel: channel, Payload: payload})
}

func startProfiler(cfg ops.ProfileConfig) func() {
	if !cfg.Enable || cfg.ServerAddress == "" {
		return func() {}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "maker",
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logs.Warnf("pyroscope start, err: %+v", err)
		return func() {}
	}
	return func() { _ = profiler.Stop() }
}
