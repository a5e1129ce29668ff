package domain

import "time"

// Organization is the tenant isolation boundary. Tasks and microtasks are
// always scoped to exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
