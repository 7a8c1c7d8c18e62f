package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pders01/restodash/internal/api"
	"github.com/pders01/restodash/internal/cache"
	"github.com/pders01/restodash/internal/config"
	"github.com/pders01/restodash/internal/metrics"
	"github.com/pders01/restodash/internal/models"
	"github.com/pders01/restodash/internal/notify"
	"github.com/pders01/restodash/internal/profile"
	"github.com/pders01/restodash/internal/registration"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// session holds what one command invocation shares: the API client, the
// cache of server state and the notification channel.
type session struct {
	settings  *config.Settings
	client    *api.Client
	store     *cache.Cache[models.ManagedRestaurant]
	notifier  notify.Notifier
	collector *metrics.Collector
	tracer    *sdktrace.TracerProvider
	logger    *slog.Logger
	stderr    io.Writer
}

func newSession(cmd *cobra.Command) (*session, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	stderr := cmd.ErrOrStderr()

	opts := api.Options{
		BaseURL: settings.API.URL,
		Timeout: settings.API.Timeout,
		Token:   settings.API.Token,
		Headers: settings.API.Headers,
	}

	var tp *sdktrace.TracerProvider
	if settings.Telemetry.Trace {
		tp, err = newTracerProvider(stderr)
		if err != nil {
			return nil, err
		}
		opts.TracerProvider = tp
	}

	client := api.NewClient(opts)

	return &session{
		settings:  settings,
		client:    client,
		store:     cache.New[models.ManagedRestaurant](),
		notifier:  notify.NewWriterNotifier(stderr, settings.UI.Locale, settings.UI.Verbose),
		collector: metrics.New(),
		tracer:    tp,
		logger:    slog.Default().With("api", client.BaseURL()),
		stderr:    stderr,
	}, nil
}

// newTracerProvider prints every ended span to w as JSON
func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), nil
}

func (s *session) profileService() (*profile.Service, error) {
	policy, err := config.ParsePolicy(s.settings.Mutation.Policy)
	if err != nil {
		return nil, err
	}

	return profile.NewService(s.store, s.client, s.notifier,
		profile.WithPolicy(policy),
		profile.WithObserver(s.collector),
		profile.WithLogger(s.logger),
	), nil
}

func (s *session) submitter() *registration.Submitter {
	return registration.NewSubmitter(s.client, s.notifier, s.logger)
}

// Close flushes traces, prints metrics when asked to and releases the cache
func (s *session) Close() error {
	var errs []error

	if s.tracer != nil {
		if err := s.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}

	if s.settings.Telemetry.Metrics {
		if err := s.collector.WriteText(s.stderr); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
	}

	return errors.Join(errs...)
}

// finish closes the session, logging what could not be flushed
func (s *session) finish() {
	if err := s.Close(); err != nil {
		s.logger.Warn("failed to close session", "error", err)
	}
}
