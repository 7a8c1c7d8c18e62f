package models

import "time"

// ManagedRestaurantKey is the cache key of the restaurant managed by the
// current session. There is one managed restaurant per session.
const ManagedRestaurantKey = "managed-restaurant"

// ManagedRestaurant is the profile snapshot returned by GET /managed-restaurant
type ManagedRestaurant struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Description *string   `json:"description" yaml:"description"`
	ManagerID   string    `json:"managerId,omitempty" yaml:"managerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero" yaml:"updatedAt,omitempty"`
}

// UpdateProfileRequest is the body of PUT /profile
type UpdateProfileRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// WithProfile returns a copy of r carrying the name and description of req.
// Server-owned fields are kept as they are.
func (r ManagedRestaurant) WithProfile(req UpdateProfileRequest) ManagedRestaurant {
	r.Name = req.Name
	r.Description = cloneString(req.Description)
	return r
}

// Profile returns the editable part of the snapshot
func (r ManagedRestaurant) Profile() UpdateProfileRequest {
	return UpdateProfileRequest{
		Name:        r.Name,
		Description: cloneString(r.Description),
	}
}

// DescriptionOr returns the description, or fallback when it is absent
func (r ManagedRestaurant) DescriptionOr(fallback string) string {
	if r.Description == nil {
		return fallback
	}
	return *r.Description
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
