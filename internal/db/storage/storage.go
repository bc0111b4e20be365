// Package storage defines the persistence contract shared by the
// Postgres, file, and in-memory backends, together with the typed
// errors callers branch on.
package storage

import (
	"context"
	"errors"

	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/user"
)

var (
	// ErrNotFound is returned when a requested user or link does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when creating a user whose email already exists.
	ErrEmailTaken = errors.New("email already taken")

	// ErrCodeTaken is returned when creating a link whose short code already exists.
	ErrCodeTaken = errors.New("short code already taken")
)

// Storage is the full persistence surface of the service.
// Implementations must enforce email and short-code uniqueness and keep
// the click counter increment atomic.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User) error

	FindUserByEmail(ctx context.Context, email string) (*user.User, error)

	FindUserByID(ctx context.Context, userID string) (*user.User, error)

	CreateLink(ctx context.Context, lnk *link.Link) error

	FindLinkByCode(ctx context.Context, code string) (*link.Link, error)

	FindLinkByID(ctx context.Context, linkID string) (*link.Link, error)

	ListLinksByUser(ctx context.Context, userID string, limit, offset int) ([]link.Link, int64, error)

	IncrementClicks(ctx context.Context, code string) error

	DeleteLink(ctx context.Context, linkID string) error

	IsCodeExists(ctx context.Context, code string) (bool, error)

	CountUsers(ctx context.Context) (int64, error)

	CountLinks(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
