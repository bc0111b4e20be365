// Package link defines the shortened-link model.
package link

import "time"

// Link maps a short code to its destination URL and tracks how many
// times the code has been resolved.
type Link struct {
	// ID is the unique identifier of the link, meaning a UUID.
	ID string

	// OriginalURL is the destination the short code redirects to.
	OriginalURL string

	// ShortCode is unique across all links.
	ShortCode string

	// UserID references the owning user.
	UserID string

	// Clicks counts successful redirects. It never decreases.
	Clicks int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
