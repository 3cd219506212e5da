// run.go: Long-running engine with hot reload and metrics
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/agilira/mnemo"
	"github.com/agilira/mnemo/config"
	"github.com/agilira/mnemo/metrics"
	"github.com/agilira/mnemo/sink"
	"github.com/agilira/mnemo/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type runOptions struct {
	metricsAddr   string
	watchInterval time.Duration
	demo          time.Duration
	duration      time.Duration
}

func runCommand(opts *options) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine until interrupted",
		Long: `Start the engine with the configured directory, print display lines to the
terminal unless headless, reload the configuration when the file changes and
optionally serve Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if ro.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, ro.duration)
				defer cancel()
			}
			return run(ctx, opts, ro, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&ro.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9108")
	f.DurationVar(&ro.watchInterval, "watch-interval", 2*time.Second, "configuration file poll interval")
	f.DurationVar(&ro.demo, "demo", 0, "emit sample events at this interval (0 disables)")
	f.DurationVar(&ro.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

// lockedWriter serializes writers that share one stream.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func run(ctx context.Context, opts *options, ro *runOptions, out, errOut io.Writer) error {
	var mu sync.Mutex
	out, errOut = lockedWriter{&mu, out}, lockedWriter{&mu, errOut}

	store, err := opts.secretStore()
	if err != nil {
		return err
	}
	cfg, warns, err := config.Load(opts.configPath, store)
	if err != nil {
		return err
	}
	printWarnings(errOut, warns)

	eng, err := mnemo.New(cfg,
		mnemo.WithUploader(upload.New()),
		mnemo.WithErrorCallback(func(op string, err error) {
			fmt.Fprintf(errOut, "mnemo %s: %v\n", op, err)
		}),
	)
	if err != nil {
		return err
	}
	if !cfg.HeadlessMode {
		eng.SetTarget(mnemo.ChannelLeft, sink.NewTerminal(out, ""))
		eng.SetTarget(mnemo.ChannelRight, sink.NewTerminal(out, "> "))
	}
	if err := eng.Start(); err != nil {
		return err
	}

	watcher, err := config.Watch(opts.configPath, ro.watchInterval, store,
		func(next mnemo.Config, warns []string) {
			for _, w := range warns {
				eng.Warning("Config: " + w)
			}
			eng.Reload(next)
			eng.Info("Configuration reloaded")
		},
		func(err error) { eng.Error("Config reload failed: " + err.Error()) },
	)
	if err != nil {
		eng.Warning("Config watch disabled: " + err.Error())
	}

	var srv *http.Server
	if ro.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if _, err := metrics.Register(reg, eng); err != nil {
			_ = eng.Close()
			return fmt.Errorf("register metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: ro.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				eng.Error("Metrics server: " + err.Error())
			}
		}()
		eng.Info("Metrics listening on " + ro.metricsAddr)
	}

	eng.Info("Log engine started in " + eng.Dir())
	if ro.demo > 0 {
		go demoTraffic(ctx, eng, ro.demo)
	}
	<-ctx.Done()
	eng.Info("Log engine stopping")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return eng.Shutdown(sctx)
}

// demoTraffic cycles through every level, with a client address on packets.
func demoTraffic(ctx context.Context, eng *mnemo.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	levels := mnemo.Levels()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		l := levels[i%len(levels)]
		var addr uint32
		if l == mnemo.LevelPackets {
			addr = 0xC0A80001 + uint32(i%250)
		}
		eng.Log(l, fmt.Sprintf("Sample %s event %d", l, i), "demo", addr)
	}
}
