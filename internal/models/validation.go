package models

import (
	"fmt"
	"strings"
)

// ValidationError reports a field that failed validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateProfile checks a profile update before it reaches the mutation
// coordinator. The name is required, the description may be absent.
func ValidateProfile(req UpdateProfileRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// ValidateRegistration checks that every field of a registration is filled in
func ValidateRegistration(req RegisterRestaurantRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"restaurantName", req.RestaurantName},
		{"managerName", req.ManagerName},
		{"email", req.Email},
		{"phone", req.Phone},
		{"address", req.Address},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "must not be empty"}
		}
	}

	if !strings.Contains(req.Email, "@") {
		return &ValidationError{Field: "email", Reason: "must be an email address"}
	}

	return nil
}
