// Package models contains the request and response shapes of the HTTP API.
package models

import "time"

// SignupRequest is the body of POST /api/v1/users/signup.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"omitempty"`
}

// SignupResponse carries the identifier of the freshly created user.
// The password and its hash are never returned.
type SignupResponse struct {
	UserID string `json:"userId"`
}

// LoginRequest is the body of POST /api/v1/users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse carries the signed bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ShortenRequest is the body of POST /api/v1/urls/shorten.
// CustomCode is optional; when present it is used verbatim as the short
// code after a uniqueness check.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,url"`
	CustomCode  string `json:"customCode" validate:"omitempty,min=3,max=30"`
}

// ShortenResponse is returned on successful shortening.
type ShortenResponse struct {
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
}

// LinkItem is a single entry of the user's link listing.
type LinkItem struct {
	ID          string    `json:"id"`
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserLinksResponse is the paginated listing of the caller's links.
type UserLinksResponse struct {
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	TotalURLs   int64      `json:"totalUrls"`
	URLs        []LinkItem `json:"urls"`
}

// InternalStatsResponse reports service-wide totals for the trusted
// stats endpoint.
type InternalStatsResponse struct {
	URLs  int64 `json:"urls"`
	Users int64 `json:"users"`
}

// ErrorResponse is the uniform error envelope. Errors is only populated
// for validation failures and maps a field name to its reason.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
