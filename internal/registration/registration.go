// Package registration submits new restaurants. It keeps no cached state and
// shares nothing with the profile mutation coordinator.
package registration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pders01/restodash/internal/models"
	"github.com/pders01/restodash/internal/notify"
)

// Registrar sends a registration to the API
type Registrar interface {
	RegisterRestaurant(ctx context.Context, req models.RegisterRestaurantRequest) error
}

// RegistrationError is returned when a registration is rejected or fails
type RegistrationError struct {
	RestaurantName string
	Err            error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %q: %v", e.RestaurantName, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Submitter registers restaurants and reports each attempt
type Submitter struct {
	api      Registrar
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewSubmitter creates a Submitter. A nil notifier discards notifications.
func NewSubmitter(api Registrar, notifier notify.Notifier, logger *slog.Logger) *Submitter {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{api: api, notifier: notifier, logger: logger}
}

// Register validates and submits req. Every call ends in exactly one
// notification.
func (s *Submitter) Register(ctx context.Context, req models.RegisterRestaurantRequest) error {
	err := models.ValidateRegistration(req)
	if err == nil {
		err = s.api.RegisterRestaurant(ctx, req)
	}

	if err != nil {
		rerr := &RegistrationError{RestaurantName: req.RestaurantName, Err: err}
		s.logger.Warn("registration failed", "restaurant", req.RestaurantName, "error", err)
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Message: notify.MsgRegistrationFailed,
			Err:     rerr,
		})
		return rerr
	}

	s.logger.Info("restaurant registered", "restaurant", req.RestaurantName)
	s.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelSuccess,
		Message: notify.MsgRestaurantRegistered,
	})
	return nil
}
