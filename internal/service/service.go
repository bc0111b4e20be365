// Package service implements the application logic between the HTTP
// surface and the storage layer: account registration and login, short
// code allocation, link listing, deletion, and redirect resolution.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/thoas/go-funk"

	"github.com/mbelenkov/shrink/internal/db/storage"
	"github.com/mbelenkov/shrink/internal/hasher"
	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/logger"
	"github.com/mbelenkov/shrink/internal/models"
	"github.com/mbelenkov/shrink/internal/user"
)

const (
	// codeByteLength is the number of random bytes drawn for a generated
	// short code; hex encoding doubles it to 8 characters.
	codeByteLength = 4

	// codeGenerationAttempts bounds the retry loop when a generated code
	// collides with an existing one. The unique constraint of the
	// storage remains the backstop for concurrent allocations.
	codeGenerationAttempts = 5

	defaultPage     = 1
	defaultPageSize = 5
)

var (
	// ErrEmailTaken is returned when signing up with an already registered email.
	ErrEmailTaken = errors.New("user already exists")

	// ErrInvalidCredentials is returned for both an unknown email and a
	// wrong password, so a caller cannot probe for account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidCustomCode is returned when a custom alias does not meet
	// the 3-30 characters, alphanumeric-plus-hyphen requirement.
	ErrInvalidCustomCode = errors.New("custom code must be 3-30 characters of letters, digits, or hyphens")

	// ErrCodeTaken is returned when the requested custom code is already in use.
	ErrCodeTaken = errors.New("custom code already in use")

	// ErrCodeExhausted is returned when repeated random draws failed to
	// find a free short code.
	ErrCodeExhausted = errors.New("could not allocate a unique short code")

	// ErrLinkNotFound is returned when a short code or link ID resolves to nothing.
	ErrLinkNotFound = errors.New("short URL not found")

	// ErrNotOwner is returned when a caller tries to delete a link they do not own.
	ErrNotOwner = errors.New("you are not allowed to delete this URL")
)

var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9-]{3,30}$`)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	FindUserByID(ctx context.Context, userID string) (*user.User, error)
}

type linkKeeper interface {
	CreateLink(ctx context.Context, lnk *link.Link) error
	FindLinkByCode(ctx context.Context, code string) (*link.Link, error)
	FindLinkByID(ctx context.Context, linkID string) (*link.Link, error)
	ListLinksByUser(ctx context.Context, userID string, limit, offset int) ([]link.Link, int64, error)
	IncrementClicks(ctx context.Context, code string) error
	DeleteLink(ctx context.Context, linkID string) error
	IsCodeExists(ctx context.Context, code string) (bool, error)
}

type counter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountLinks(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type repository interface {
	userKeeper
	linkKeeper
	counter
	pinger
}

type tokenIssuer interface {
	IssueToken(userID, email string) (string, error)
}

// Service wires the storage and token issuer into the operations the
// HTTP surface exposes.
type Service struct {
	db           repository
	tokens       tokenIssuer
	shortURLBase string
}

// New creates a Service. shortURLBase is the public base under which
// short codes are reachable.
func New(db repository, tokens tokenIssuer, shortURLBase string) *Service {
	return &Service{
		db:           db,
		tokens:       tokens,
		shortURLBase: shortURLBase,
	}
}

// SignUp registers a new account and returns its ID. The password is
// stored only as a salted hash.
func (s *Service) SignUp(ctx context.Context, req models.SignupRequest) (string, error) {
	_, err := s.db.FindUserByEmail(ctx, req.Email)
	if err == nil {
		return "", ErrEmailTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	salt, hash, err := hasher.Hash(req.Password)
	if err != nil {
		return "", err
	}

	usr := &user.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordSalt: salt,
		PasswordHash: hash,
	}
	if err := s.db.CreateUser(ctx, usr); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	return usr.ID, nil
}

// Login verifies the credentials and returns a signed bearer token.
// An unknown email and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	usr, err := s.db.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !hasher.Verify(req.Password, usr.PasswordSalt, usr.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return s.tokens.IssueToken(usr.ID, usr.Email)
}

// Shorten allocates a short code for the destination URL and persists
// the link. A supplied custom code is used verbatim after validation
// and a uniqueness check; otherwise a random 8-character hex code is
// drawn, retrying a bounded number of times on collision.
func (s *Service) Shorten(
	ctx context.Context,
	userID string,
	req models.ShortenRequest,
) (models.ShortenResponse, error) {
	code, err := s.allocateCode(ctx, req.CustomCode)
	if err != nil {
		return models.ShortenResponse{}, err
	}

	lnk := &link.Link{
		OriginalURL: req.OriginalURL,
		ShortCode:   code,
		UserID:      userID,
	}
	if err := s.db.CreateLink(ctx, lnk); err != nil {
		if errors.Is(err, storage.ErrCodeTaken) {
			// Lost the race between the existence pre-check and the
			// insert; the unique constraint caught it.
			return models.ShortenResponse{}, ErrCodeTaken
		}
		return models.ShortenResponse{}, err
	}

	return models.ShortenResponse{
		ShortURL:    s.GetShortURL(code),
		OriginalURL: lnk.OriginalURL,
	}, nil
}

func (s *Service) allocateCode(ctx context.Context, customCode string) (string, error) {
	if customCode != "" {
		if !customCodePattern.MatchString(customCode) {
			return "", ErrInvalidCustomCode
		}
		exists, err := s.db.IsCodeExists(ctx, customCode)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrCodeTaken
		}
		return customCode, nil
	}

	for i := 0; i < codeGenerationAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		exists, err := s.db.IsCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeExhausted
}

func generateCode() (string, error) {
	buf := make([]byte, codeByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("drawing random code: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// UserLinks returns one page of the caller's links, newest first.
// Non-positive page and limit fall back to the defaults (1 and 5).
func (s *Service) UserLinks(
	ctx context.Context,
	userID string,
	page, limit int,
) (models.UserLinksResponse, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}

	links, total, err := s.db.ListLinksByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return models.UserLinksResponse{}, err
	}

	items := funk.Map(links, func(lnk link.Link) models.LinkItem {
		return models.LinkItem{
			ID:          lnk.ID,
			ShortURL:    s.GetShortURL(lnk.ShortCode),
			OriginalURL: lnk.OriginalURL,
			Clicks:      lnk.Clicks,
			CreatedAt:   lnk.CreatedAt,
			UpdatedAt:   lnk.UpdatedAt,
		}
	}).([]models.LinkItem)

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return models.UserLinksResponse{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalURLs:   total,
		URLs:        items,
	}, nil
}

// Delete removes the caller's link. Unknown IDs fail with
// ErrLinkNotFound, foreign ones with ErrNotOwner.
func (s *Service) Delete(ctx context.Context, userID, linkID string) error {
	lnk, err := s.db.FindLinkByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}

	if lnk.UserID != userID {
		return ErrNotOwner
	}

	if err := s.db.DeleteLink(ctx, lnk.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}

	return nil
}

// Resolve looks up the destination for a short code and counts the
// click. The increment is best-effort: a failed counter update is
// logged and the redirect is still served.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	lnk, err := s.db.FindLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrLinkNotFound
		}
		return "", err
	}

	if err := s.db.IncrementClicks(ctx, code); err != nil {
		logger.Log.Warnln("failed to increment clicks", "code", code, "error", err)
	}

	return lnk.OriginalURL, nil
}

// Stats returns service-wide totals of links and users.
func (s *Service) Stats(ctx context.Context) (models.InternalStatsResponse, error) {
	links, err := s.db.CountLinks(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.CountUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		URLs:  links,
		Users: users,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetShortURL composes the public short URL for a code.
func (s *Service) GetShortURL(code string) string {
	return s.shortURLBase + "/" + code
}
