// Command creature-server runs the cooperative animation playback core:
// the event loop, scheduler, and RTP/DMX output paths. The HTTP/WebSocket
// surface, Mongo storage, lip-sync, and TTS glue this wires to in a full
// deployment are external collaborators out of this repository's scope.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsnlops/creature-server/internal/audio/transport"
	"github.com/opsnlops/creature-server/internal/config"
	"github.com/opsnlops/creature-server/internal/creature"
	"github.com/opsnlops/creature-server/internal/dmx"
	"github.com/opsnlops/creature-server/internal/eventloop"
	"github.com/opsnlops/creature-server/internal/logging"
	"github.com/opsnlops/creature-server/internal/metrics"
	"github.com/opsnlops/creature-server/internal/observability"
	"github.com/opsnlops/creature-server/internal/rtp"
	"github.com/opsnlops/creature-server/internal/scheduler"
	"github.com/opsnlops/creature-server/internal/status"
	"github.com/opsnlops/creature-server/internal/store"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFilePath)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	log.Info("starting creature-server", logging.String("service", cfg.ServiceName))

	counters := metrics.New()
	spans := observability.SpanFactory(observability.NoopFactory{})

	db, err := store.Open(cfg.CreatureStoreDSN)
	if err != nil {
		return fmt.Errorf("opening creature store: %w", err)
	}
	defer db.Close()

	var cache creature.Cache
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		cache = creature.NewRedisCache(rdb, time.Duration(cfg.CreatureCacheTTLS)*time.Second)
	} else {
		cache = creature.NewMemoryCache()
	}

	sink, err := dmx.NewSACNSink(cfg.DmxSinkAddress, log)
	if err != nil {
		return fmt.Errorf("opening dmx sink: %w", err)
	}
	defer sink.Close()

	loop := eventloop.New(cfg.MsPerTick, log, counters)

	var destinations [rtp.ChannelCount]string
	for c := range destinations {
		destinations[c] = fmt.Sprintf("127.0.0.1:%d", cfg.RtpPortRangeStart+c)
	}
	rtpServer, err := rtp.NewServer(destinations, log)
	if err != nil {
		return fmt.Errorf("starting rtp server: %w", err)
	}
	defer rtpServer.Close()

	statusDriver := status.NewMemoryDriver()

	var localPlayer transport.Player
	if cfg.AudioMode == config.AudioModeLocal {
		localPlayer = transport.NewExecPlayer(cfg.LocalPlayerCommand)
	}

	registry := scheduler.NewRegistry()
	sched := scheduler.New(loop, registry, cache, db, sink, cfg, nil, rtpServer, localPlayer, statusDriver, spans, log, counters)
	_ = sched // held ready for the (out-of-scope) HTTP/WebSocket surface to call ScheduleAnimation through

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})

	<-gctx.Done()
	log.Info("shutdown signal received, stopping event loop")
	loop.Stop()

	return g.Wait()
}
