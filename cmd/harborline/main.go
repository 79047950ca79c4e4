// cmd/harborline/main.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/harborline/harborline/feed"
	"github.com/harborline/harborline/fleet"
	"github.com/harborline/harborline/kv"
	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/util"
	"github.com/harborline/harborline/vesselmap"

	"github.com/goforj/godump"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to this file")
	logLevel    = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir      = flag.String("logdir", "", "log file directory")
	storeKind   = flag.String("store", "file", "preference store: memory, file, badger")
	storePath   = flag.String("storepath", "", "preference store path (default: under the log directory)")
	vesselsPath = flag.String("vessels", "", "YAML vessel fixture (default: built-in demo fleet)")
	feedKind    = flag.String("feed", "sim", "position feed: sim, ws, mqtt")
	feedURL     = flag.String("feedurl", "", "websocket URL or MQTT broker for live feeds")
	mqttTopic   = flag.String("mqtttopic", "harborline/positions", "MQTT topic for position reports")
	seed        = flag.Int64("seed", 0, "random seed for the simulated feed (0: time-based)")
	tick        = flag.Duration("tick", feed.DefaultInterval, "simulated feed interval")
	metricsAddr = flag.String("metrics", "", "address to serve /metrics on (e.g. localhost:9090)")
	dump        = flag.Bool("dump", false, "print the vessels and stored preferences and exit")
	baseURL     = flag.String("baseurl", "http://localhost:8080", "base URL for vessel details pages")
)

func main() {
	flag.Parse()

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	profiler, err := util.StartProfiler(*cpuprofile, *memprofile)
	if err != nil {
		lg.Errorf("%v", err)
	}

	err = run(lg)
	if perr := profiler.Stop(); perr != nil {
		lg.Errorf("%v", perr)
	}
	if err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "harborline: %v\n", err)
		os.Exit(1)
	}
}

func run(lg *log.Logger) error {
	vessels, err := loadVessels(*vesselsPath, lg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(*storeKind, *storePath, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	if *dump {
		godump.Dump(vessels)
		if l, ok := store.(interface {
			kv.Store
			kv.Lister
		}); ok {
			return kv.ExportJSON(os.Stdout, l)
		}
		return nil
	}

	src, err := makeSource(lg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	vp := maplib.NewViewport(math.LL(20, 0), 2, [2]float32{1024, 768})
	m := maplib.New(vp, lg)
	adapter := vesselmap.New(m, vesselmap.Options{
		Store:      store,
		Source:     src,
		Registerer: reg,
	}, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:    *metricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		eg.Go(func() error {
			lg.Info("serving metrics", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	ui := &tui{
		adapter: adapter,
		fleet:   fleet.New(store, lg),
		baseURL: *baseURL,
		lg:      lg,
	}
	eg.Go(func() error {
		defer stop()
		defer adapter.Destroy()
		adapter.SetVessels(vessels)
		return ui.run(ctx)
	})

	return eg.Wait()
}

func openStore(kind, path string, lg *log.Logger) (kv.Store, func(), error) {
	switch kind {
	case "memory":
		return kv.NewMemoryStore(), func() {}, nil

	case "file":
		if path == "" {
			path = filepath.Join(lg.LogDir, "prefs.msgpack.zst")
		}
		fs, err := kv.NewFileStore(path, lg)
		if err != nil {
			return nil, nil, err
		}
		if err := fs.Watch(func() { lg.Info("preferences changed on disk", "path", path) }); err != nil {
			lg.Warnf("%s: unable to watch for changes: %v", path, err)
		}
		return fs, func() { fs.Close() }, nil

	case "badger":
		if path == "" {
			path = filepath.Join(lg.LogDir, "prefs.badger")
		}
		bs, err := kv.OpenBadgerStore(kv.BadgerConfig{Path: path}, lg)
		if err != nil {
			return nil, nil, err
		}
		return bs, func() { bs.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%s: unknown store kind", kind)
	}
}

func makeSource(lg *log.Logger) (feed.Source, error) {
	switch *feedKind {
	case "sim":
		s := *seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		return feed.NewSimulated(s, *tick, lg), nil

	case "ws":
		if *feedURL == "" {
			return nil, errors.New("-feedurl is required for the websocket feed")
		}
		return feed.NewLive(feed.DialWebSocket(*feedURL, nil, lg), 5*time.Second, lg), nil

	case "mqtt":
		if *feedURL == "" {
			return nil, errors.New("-feedurl is required for the MQTT feed")
		}
		return feed.NewLive(feed.DialMQTT(*feedURL, *mqttTopic, lg), 5*time.Second, lg), nil

	default:
		return nil, fmt.Errorf("%s: unknown feed kind", *feedKind)
	}
}
