// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package command contains the setup shared by the command line tools.
package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	ipc "github.com/nxgtw/go-ipc-sync"
	"github.com/nxgtw/go-ipc-sync/internal/config"
	"github.com/nxgtw/go-ipc-sync/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// Env is what every command needs: configuration, a logger and a metrics registry.
type Env struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	server   *http.Server
}

// NewEnv loads the configuration from the environment, builds a logger,
// and starts the metrics endpoint, if its address is configured.
func NewEnv(name string) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, Fail("config", err)
	}
	return NewEnvWithConfig(name, cfg)
}

// NewEnvWithConfig is the same as NewEnv, but uses the given configuration.
func NewEnvWithConfig(name string, cfg *config.Config) (*Env, error) {
	log, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, Fail("logger", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	env := &Env{Config: cfg, Log: log.Named(name), Registry: reg}
	if len(cfg.Metrics.Addr) > 0 {
		env.serveMetrics(cfg.Metrics.Addr)
	}
	return env, nil
}

func (e *Env) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{Registry: e.Registry}))
	e.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.Log.Warn("metrics endpoint failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	e.Log.Info("serving metrics", zap.String("addr", addr))
}

// Close stops the metrics endpoint and flushes the logger.
func (e *Env) Close() {
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.server.Shutdown(ctx)
	}
	e.Log.Sync()
}

// Fail returns an error, which makes the application print "op: kind: err" and exit with code 1.
// The kind is omitted, if err can't be classified.
func Fail(op string, err error) cli.ExitCoder {
	if kind := ipc.KindOf(err); kind != ipc.KindUnknown {
		return cli.Exit(fmt.Sprintf("%s: %s: %v", op, kind, err), 1)
	}
	return cli.Exit(fmt.Sprintf("%s: %v", op, err), 1)
}

// SyncWriter returns a writer, which serializes writes to w.
func SyncWriter(w io.Writer) io.Writer {
	return &syncWriter{w: w}
}

type syncWriter struct {
	mut sync.Mutex
	w   io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.w.Write(p)
}
