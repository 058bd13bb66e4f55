package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	applogger "SignalFlow/pkg/logger"
)

// Components holds what the App starts and stops. Consumer and RequestsHandler
// may be nil. Infrastructure clients are released by the DI cleanup.
type Components struct {
	Logger          *applogger.Logger
	HTTP            *xhttp.Server
	Consumer        *pkgkafka.Consumer
	RequestsHandler pkgkafka.MessageHandler
	ConsumerHooks   []pkgkafka.ConsumerHook
	ShutdownTimeout time.Duration
}

// App encapsulates the entire application lifecycle.
type App struct {
	c Components
	l *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(c Components) *App {
	if c.Logger == nil {
		c.Logger = applogger.Nop()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return &App{c: c, l: c.Logger}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done or the HTTP
// server fails to start.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.startConsumer(); err != nil {
		a.l.Error("kafka consumer start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) startConsumer() error {
	if a.c.Consumer == nil || a.c.RequestsHandler == nil {
		return nil
	}
	if len(a.c.ConsumerHooks) > 0 {
		a.c.Consumer.WithConsumerHook(pkgkafka.NewHookChain(a.c.ConsumerHooks...))
	}
	a.c.Consumer.RegisterHandler(a.c.RequestsHandler)
	if err := a.c.Consumer.Start(); err != nil {
		return err
	}
	a.l.Info("kafka consumer started", applogger.String("topic", a.c.RequestsHandler.Topic()))
	return nil
}

// shutdown stops intake. The collector flushes last so shutdown errors ship too.
func (a *App) shutdown() {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.c.ShutdownTimeout)
	defer cancel()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	a.l.RemoveCollector()
}
