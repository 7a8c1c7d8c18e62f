// Package profile edits the managed restaurant's profile with optimistic
// updates: the cached snapshot changes as soon as the user submits, and is
// put back if the API rejects the write.
package profile

import (
	"context"
	"log/slog"

	"github.com/pders01/restodash/internal/cache"
	"github.com/pders01/restodash/internal/models"
	"github.com/pders01/restodash/internal/mutation"
	"github.com/pders01/restodash/internal/notify"
)

// API is the part of the restaurant API the profile flow uses
type API interface {
	GetManagedRestaurant(ctx context.Context) (*models.ManagedRestaurant, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error
}

// Observer receives fetch and mutation events, typically a metrics collector
type Observer interface {
	cache.FetchObserver
	mutation.Observer
}

// Option configures a Service
type Option func(*settings)

type settings struct {
	policy   mutation.Policy
	observer Observer
	logger   *slog.Logger
}

// WithPolicy sets how concurrent updates interact
func WithPolicy(p mutation.Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithObserver registers an Observer
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Service reads and updates the managed restaurant profile
type Service struct {
	accessor    *cache.Accessor[models.ManagedRestaurant]
	coordinator *mutation.Coordinator[models.ManagedRestaurant]
}

// NewService wires the profile flow around store. The store is owned by the
// caller and outlives the Service.
func NewService(store *cache.Cache[models.ManagedRestaurant], api API, notifier notify.Notifier, opts ...Option) *Service {
	s := settings{
		policy: mutation.PolicyConcurrent,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	fetch := func(ctx context.Context, key string) (models.ManagedRestaurant, error) {
		restaurant, err := api.GetManagedRestaurant(ctx)
		if err != nil {
			return models.ManagedRestaurant{}, err
		}
		return *restaurant, nil
	}

	accessorOpts := []cache.AccessorOption[models.ManagedRestaurant]{
		cache.WithLogger[models.ManagedRestaurant](s.logger),
	}
	coordinatorOpts := []mutation.Option{
		mutation.WithPolicy(s.policy),
		mutation.WithLogger(s.logger),
		mutation.WithMessages(notify.MsgProfileUpdated, notify.MsgProfileUpdateFailed),
	}
	if s.observer != nil {
		accessorOpts = append(accessorOpts, cache.WithFetchObserver[models.ManagedRestaurant](s.observer))
		coordinatorOpts = append(coordinatorOpts, mutation.WithObserver(s.observer))
	}

	accessor := cache.NewAccessor(store, fetch, accessorOpts...)

	write := func(ctx context.Context, key string, v models.ManagedRestaurant) error {
		return api.UpdateProfile(ctx, v.Profile())
	}

	return &Service{
		accessor:    accessor,
		coordinator: mutation.New[models.ManagedRestaurant](accessor, write, notifier, coordinatorOpts...),
	}
}

// Current returns the managed restaurant, fetching it on first use
func (s *Service) Current(ctx context.Context) (models.ManagedRestaurant, error) {
	return s.accessor.Read(ctx, models.ManagedRestaurantKey)
}

// Cached returns the managed restaurant without any network call
func (s *Service) Cached() (models.ManagedRestaurant, bool) {
	return s.accessor.Peek(models.ManagedRestaurantKey)
}

// Start validates req, applies it to the cached snapshot and sends it to the
// API in the background.
func (s *Service) Start(ctx context.Context, req models.UpdateProfileRequest) (*mutation.Pending[models.ManagedRestaurant], error) {
	if err := models.ValidateProfile(req); err != nil {
		return nil, err
	}

	// Server-owned fields of the cached snapshot are carried over
	base, _ := s.accessor.Peek(models.ManagedRestaurantKey)
	proposed := base.WithProfile(req)

	return s.coordinator.Start(ctx, models.ManagedRestaurantKey, proposed), nil
}

// Update is Start followed by waiting for the write to settle
func (s *Service) Update(ctx context.Context, req models.UpdateProfileRequest) (mutation.Outcome, error) {
	p, err := s.Start(ctx, req)
	if err != nil {
		return mutation.Outcome{Key: models.ManagedRestaurantKey}, err
	}
	return p.Wait()
}

// Drain waits for in-flight updates
func (s *Service) Drain() {
	s.coordinator.Drain()
}
