package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start binds the configured address and serves until a termination signal
// arrives, the app context ends or the listener fails. The returned channel is
// closed at that point; call Stop afterwards.
func (a *App) Start() <-chan struct{} {
	done := make(chan struct{})

	var serveErr <-chan error
	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		failed := make(chan error, 1)
		failed <- err
		serveErr = failed
	} else {
		slog.Info("http server listening", "address", l.Addr().String())
		serveErr = a.Serve(l)
	}

	go func() {
		defer close(done)

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			slog.Info("shutdown requested", "signal", sig.String())
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server stopped unexpectedly", "address", a.httpServer.Addr, "error", err)
			}
		case <-a.ctx.Done():
		}
		a.cancel()
	}()

	return done
}

// Serve runs the HTTP server on l. The channel yields the Serve error once.
func (a *App) Serve(l net.Listener) <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		errs <- a.httpServer.Serve(l)
	}()
	return errs
}

// Stop drains HTTP traffic, cancels consumers, gives in-flight OTP
// deliveries until ctx ends, then releases resources in reverse dependency
// order.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}
	a.cancel()

	a.drainGoroutines(ctx)

	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", c.name, "error", err)
		}
	}
	slog.InfoContext(ctx, "application stopped")
}

func (a *App) drainGoroutines(ctx context.Context) {
	slog.InfoContext(ctx, "waiting for background tasks", "in_flight", a.goroutine.InFlight())

	waited := make(chan error, 1)
	go func() { waited <- a.goroutine.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			slog.ErrorContext(ctx, "background task failed", "error", err)
		}
	case <-ctx.Done():
		slog.WarnContext(ctx, "gave up waiting for background tasks", "error", ctx.Err())
	}
}
