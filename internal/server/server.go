// Package server assembles the service from configuration.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-service/internal/handler"
	"invoice-service/internal/invoicepdf"
	"invoice-service/internal/metrics"
	"invoice-service/internal/notify"
	"invoice-service/internal/payment"
	"invoice-service/internal/store"
	"invoice-service/pkg/config"
	"invoice-service/pkg/jwtutil"
	"invoice-service/pkg/logger"
)

// Options overrides collaborators built from configuration. Zero values
// mean "build from config".
type Options struct {
	Gateway  payment.Gateway
	Mailer   notify.Mailer
	Registry *prometheus.Registry
}

// App is the assembled service.
type App struct {
	Config     *config.Config
	Echo       *echo.Echo
	Store      *store.Store
	Metrics    *metrics.Metrics
	Dispatcher *notify.Dispatcher
	Registry   *prometheus.Registry
	log        *zap.Logger
}

// New builds the service on top of an open database.
func New(cfg *config.Config, db *gorm.DB, opts Options) (*App, error) {
	log := logger.GetLogger()

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(reg, cfg.ServiceName, cfg.Metrics.Prefix)

	st := store.New(db)
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	renderer := invoicepdf.NewRenderer(cfg.App.CurrencySymbol)

	mailer := opts.Mailer
	if mailer == nil {
		if cfg.Mail.Enabled() {
			smtp, err := notify.NewSMTPMailer(cfg.Mail)
			if err != nil {
				return nil, err
			}
			mailer = smtp
		} else {
			log.Warn("MAIL_HOST not set, invoice emails will only be logged")
			mailer = notify.LogMailer{Log: log}
		}
	}
	dispatcher := notify.NewDispatcher(mailer, renderer, notify.Options{
		Workers:      cfg.Notify.Workers,
		QueueSize:    cfg.Notify.QueueSize,
		MaxRetries:   cfg.Notify.MaxRetries,
		From:         cfg.Mail.From,
		ClientAppURL: cfg.App.ClientAppURL,
	}, log.Named("notify"), m)

	gateway := opts.Gateway
	if gateway == nil && cfg.Payment.Enabled() {
		gateway = payment.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret)
	}
	if gateway == nil {
		log.Warn("Payment gateway credentials not set, payment routes will fail")
	}
	payments := payment.NewService(gateway, st, cfg.Payment.KeySecret, cfg.Payment.Currency, log.Named("payment"), m)

	h := handler.New(handler.Deps{
		ServiceName: cfg.ServiceName,
		Store:       st,
		JWT:         jwtUtil,
		Payments:    payments,
		Renderer:    renderer,
		Notifier:    dispatcher,
		Metrics:     m,
	})

	return &App{
		Config:     cfg,
		Echo:       NewRouter(h, jwtUtil, m, reg),
		Store:      st,
		Metrics:    m,
		Dispatcher: dispatcher,
		Registry:   reg,
		log:        log,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.Dispatcher.Start(ctx)

	go func() {
		for {
			select {
			case f := <-a.Dispatcher.Failures():
				a.log.Error("Invoice email gave up",
					zap.Uint("invoice_id", f.InvoiceID),
					zap.String("invoice_number", f.InvoiceNumber),
					zap.Error(f.Err))
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.Config.Server.Port
		a.log.Info("Starting server", zap.String("addr", addr))
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a.log.Info("Shutting down server")
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := a.Dispatcher.Stop(shutdownCtx); err != nil {
		a.log.Warn("Notification queue not drained", zap.Error(err))
	}
	return runErr
}
