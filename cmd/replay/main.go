// Command replay reruns a captured venue stream through the book pipeline
// and prints what the books looked like at the end of the session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/doug4987/New-MM-Test/internal/book"
	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/feed"
	"github.com/doug4987/New-MM-Test/internal/recorder"
)

func main() {
	path := flag.String("file", "", "Capture file to replay")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.New()
	defer events.Close()
	books := book.NewStore()
	engine := book.NewEngine(books, events, 1, 1024)
	normalizer := feed.NewNormalizer()

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(engineCtx)
	}()

	var wagerUpdates int
	playback := recorder.NewPlayback(recorder.PlaybackConfig{Path: *path, Speed: *speed})
	err := playback.Run(ctx, func(rec recorder.Record) error {
		switch rec.Channel {
		case recorder.ChannelMarketUpdates:
			for _, u := range normalizer.Normalize(rec.Payload) {
				if err := engine.Submit(ctx, book.Batch{Market: u.Market, Changes: u.Changes}); err != nil {
					return err
				}
			}
		case recorder.ChannelWagerUpdates:
			wagerUpdates++
		}
		return nil
	})

	cancelEngine()
	<-done

	if err != nil && ctx.Err() == nil {
		log.Fatalf("replay failed: %v", err)
	}

	printSummary(books, normalizer, wagerUpdates)
}

func printSummary(books *book.Store, normalizer *feed.Normalizer, wagerUpdates int) {
	snapshots := books.Snapshot()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Market.MarketID < snapshots[j].Market.MarketID
	})

	fmt.Printf("markets: %d, wager updates seen: %d, malformed payloads: %d\n",
		len(snapshots), wagerUpdates, normalizer.Malformed())

	for _, snap := range snapshots {
		top, _ := books.Top(snap.Market.MarketID)
		line := "-"
		switch {
		case top.TwoSided():
			line = fmt.Sprintf("bid %+d / ask %+d (spread %d, mid %.1f)",
				int64(top.Bid.Price), int64(top.Ask.Price), int64(top.Spread), top.Mid)
		case top.HasBid:
			line = fmt.Sprintf("bid %+d only", int64(top.Bid.Price))
		case top.HasAsk:
			line = fmt.Sprintf("ask %+d only", int64(top.Ask.Price))
		}
		halted := ""
		if books.Halted(snap.Market.MarketID) {
			halted = " [halted]"
		}
		fmt.Printf("  %s (%s)%s: %s, %d levels\n",
			snap.Market.MarketID, snap.Market.EventName, halted, line, len(snap.Levels))
	}
}
