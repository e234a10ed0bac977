package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"paymanager/internal/amqp"
	"paymanager/internal/backend"
	"paymanager/internal/config"
	"paymanager/internal/log"
	"paymanager/internal/metrics"
	"paymanager/internal/payments"
	"paymanager/internal/services"
)

// App is everything a command needs once configuration has been loaded.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    *payments.Store
	Service  *services.PaymentService
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	closers []func() error
}

// Open connects the configured settings backend and, when AMQP_URL is set,
// the event publisher. An unreachable broker is logged and events are
// disabled; the store is the only hard dependency.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", backendCfg.Type, err)
	}
	app.closers = append(app.closers, result.Close)

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(app.Metrics),
		services.WithLocation(cfg.Location()),
	}
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, payment events disabled", log.FieldError, err)
		} else {
			app.closers = append(app.closers, client.Close)
			opts = append(opts, services.WithPublisher(client))
		}
	}

	app.Store = payments.NewStore(result.Store)
	app.Service = services.NewPaymentService(app.Store, opts...)
	if err := app.Service.Init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
