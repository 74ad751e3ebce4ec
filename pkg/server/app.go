package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"Ares/pkg/config"
	xhttp "Ares/pkg/http"
	pkgkafka "Ares/pkg/kafka"
	applogger "Ares/pkg/logger"
)

// Shutdowner is anything that stops accepting work before the process exits.
type Shutdowner interface {
	Close()
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	streams    []Shutdowner
	closers    []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log.Component("app"),
		httpServer: httpServer,
		consumer:   consumer,
	}
}

// Consume registers a Kafka handler started with the consumer.
func (a *App) Consume(h pkgkafka.MessageHandler) { a.handlers = append(a.handlers, h) }

// OnShutdown registers a stream closed before the HTTP server stops.
func (a *App) OnShutdown(s Shutdowner) { a.streams = append(a.streams, s) }

// CloseOnExit registers a resource closed last, in reverse order of registration.
func (a *App) CloseOnExit(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the consumer and the HTTP server and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		for _, h := range a.handlers {
			a.log.Info("kafka consumer started", applogger.String("topic", h.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains, then closes infrastructure clients.
func (a *App) shutdown() error {
	ctx := context.Background()

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		err := a.consumer.Stop(stopCtx)
		cancel()
		if err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for _, s := range a.streams {
		s.Close()
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn(nc.name+" close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
