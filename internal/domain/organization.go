package domain

import "time"

// Organization is the tenant boundary: every service and incident belongs
// to exactly one organization, and every query is scoped by it.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrgRef is the minimal organization identity needed to route broadcasts.
// Deletion flows capture it before the owning row becomes unreachable.
type OrgRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}
