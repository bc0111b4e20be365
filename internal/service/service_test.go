package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbelenkov/shrink/internal/auth"
	"github.com/mbelenkov/shrink/internal/db/memorystorage"
	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/logger"
	"github.com/mbelenkov/shrink/internal/mockstorage"
	"github.com/mbelenkov/shrink/internal/models"
)

const testShortURLBase = "http://localhost:8080"

var generatedCodePattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func newTestService(t *testing.T) (*Service, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theAuth := auth.New([]byte("test-signing-secret"), 24*time.Hour)

	return New(theStorage, theAuth, testShortURLBase), theStorage
}

func signUpTestUser(t *testing.T, svc *Service, email string) string {
	t.Helper()

	userID, err := svc.SignUp(context.Background(), models.SignupRequest{
		Email:     email,
		Password:  "secret1",
		FirstName: "A",
	})
	require.NoError(t, err)

	return userID
}

func TestSignUp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	userID, err := svc.SignUp(ctx, models.SignupRequest{
		Email:     "a@x.com",
		Password:  "secret1",
		FirstName: "A",
		LastName:  "B",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, models.SignupRequest{
			Email:     "a@x.com",
			Password:  "another1",
			FirstName: "C",
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	signUpTestUser(t, svc, "a@x.com")

	t.Run("valid credentials", func(t *testing.T) {
		token, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "secret1"})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "wrong password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestShortenGeneratedCode(t *testing.T) {
	svc, theStorage := newTestService(t)
	ctx := context.Background()
	userID := signUpTestUser(t, svc, "a@x.com")

	result, err := svc.Shorten(ctx, userID, models.ShortenRequest{
		OriginalURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", result.OriginalURL)

	code, found := parseShortURL(result.ShortURL)
	require.True(t, found, "the short URL should start with the configured base")
	assert.Regexp(t, generatedCodePattern, code, "a generated code should be 8 lowercase hex characters")

	lnk, err := theStorage.FindLinkByCode(ctx, code)
	require.NoError(t, err)
	assert.Zero(t, lnk.Clicks, "a fresh link should have zero clicks")
	assert.Equal(t, userID, lnk.UserID)
}

func TestShortenCustomCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := signUpTestUser(t, svc, "a@x.com")

	result, err := svc.Shorten(ctx, userID, models.ShortenRequest{
		OriginalURL: "https://example.com",
		CustomCode:  "my-alias",
	})
	require.NoError(t, err)
	assert.Equal(t, testShortURLBase+"/my-alias", result.ShortURL)

	t.Run("taken alias", func(t *testing.T) {
		_, err := svc.Shorten(ctx, userID, models.ShortenRequest{
			OriginalURL: "https://other.example.com",
			CustomCode:  "my-alias",
		})
		assert.ErrorIs(t, err, ErrCodeTaken)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := svc.Shorten(ctx, userID, models.ShortenRequest{
			OriginalURL: "https://example.com",
			CustomCode:  "ab",
		})
		assert.ErrorIs(t, err, ErrInvalidCustomCode)
	})

	t.Run("forbidden characters", func(t *testing.T) {
		_, err := svc.Shorten(ctx, userID, models.ShortenRequest{
			OriginalURL: "https://example.com",
			CustomCode:  "bad code!",
		})
		assert.ErrorIs(t, err, ErrInvalidCustomCode)
	})
}

func TestShortenRetriesOnCollision(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	theStorage := &mockstorage.StorageMock{}
	theStorage.On("IsCodeExists", mock.Anything, mock.AnythingOfType("string")).Return(true, nil).Twice()
	theStorage.On("IsCodeExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()
	theStorage.On("CreateLink", mock.Anything, mock.AnythingOfType("*link.Link")).Return(nil)

	svc := New(theStorage, auth.New([]byte("test-signing-secret"), time.Hour), testShortURLBase)

	result, err := svc.Shorten(context.Background(), "user-1", models.ShortenRequest{
		OriginalURL: "https://example.com",
	})
	require.NoError(t, err, "colliding draws should be retried with a fresh code")

	code, found := parseShortURL(result.ShortURL)
	require.True(t, found)
	assert.Regexp(t, generatedCodePattern, code)
	theStorage.AssertNumberOfCalls(t, "IsCodeExists", 3)
}

func TestShortenGivesUpAfterBoundedRetries(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	theStorage := &mockstorage.StorageMock{}
	theStorage.On("IsCodeExists", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

	svc := New(theStorage, auth.New([]byte("test-signing-secret"), time.Hour), testShortURLBase)

	_, err := svc.Shorten(context.Background(), "user-1", models.ShortenRequest{
		OriginalURL: "https://example.com",
	})
	assert.ErrorIs(t, err, ErrCodeExhausted)
	theStorage.AssertNumberOfCalls(t, "IsCodeExists", codeGenerationAttempts)
}

func TestResolve(t *testing.T) {
	svc, theStorage := newTestService(t)
	ctx := context.Background()
	userID := signUpTestUser(t, svc, "a@x.com")

	_, err := svc.Shorten(ctx, userID, models.ShortenRequest{
		OriginalURL: "https://example.com",
		CustomCode:  "my-alias",
	})
	require.NoError(t, err)

	t.Run("each resolution counts one click", func(t *testing.T) {
		destination, err := svc.Resolve(ctx, "my-alias")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", destination)

		destination, err = svc.Resolve(ctx, "my-alias")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", destination)

		lnk, err := theStorage.FindLinkByCode(ctx, "my-alias")
		require.NoError(t, err)
		assert.Equal(t, int64(2), lnk.Clicks)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "ffffffff")
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestResolveSurvivesCounterFailure(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	theStorage := &mockstorage.StorageMock{}
	theStorage.On("FindLinkByCode", mock.Anything, "my-alias").Return(&link.Link{
		ID:          "link-1",
		OriginalURL: "https://example.com",
		ShortCode:   "my-alias",
		UserID:      "user-1",
	}, nil)
	theStorage.On("IncrementClicks", mock.Anything, "my-alias").Return(errors.New("storage is down"))

	svc := New(theStorage, auth.New([]byte("test-signing-secret"), time.Hour), testShortURLBase)

	destination, err := svc.Resolve(context.Background(), "my-alias")
	require.NoError(t, err, "a failed click increment should not block the redirect")
	assert.Equal(t, "https://example.com", destination)
	theStorage.AssertExpectations(t)
}

func TestDelete(t *testing.T) {
	svc, theStorage := newTestService(t)
	ctx := context.Background()
	ownerID := signUpTestUser(t, svc, "owner@x.com")
	otherID := signUpTestUser(t, svc, "other@x.com")

	_, err := svc.Shorten(ctx, ownerID, models.ShortenRequest{
		OriginalURL: "https://example.com",
		CustomCode:  "my-alias",
	})
	require.NoError(t, err)

	lnk, err := theStorage.FindLinkByCode(ctx, "my-alias")
	require.NoError(t, err)

	t.Run("non-owner is rejected", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, otherID, lnk.ID), ErrNotOwner)
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, ownerID, lnk.ID))

		_, err := theStorage.FindLinkByID(ctx, lnk.ID)
		assert.Error(t, err, "the link should be gone after deletion")
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, ownerID, "no-such-id"), ErrLinkNotFound)
	})
}

func TestUserLinksPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := signUpTestUser(t, svc, "a@x.com")

	for i := 0; i < 7; i++ {
		_, err := svc.Shorten(ctx, userID, models.ShortenRequest{
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)
	}

	t.Run("defaults", func(t *testing.T) {
		result, err := svc.UserLinks(ctx, userID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.CurrentPage)
		assert.Equal(t, 2, result.TotalPages)
		assert.Equal(t, int64(7), result.TotalURLs)
		assert.Len(t, result.URLs, 5)
	})

	t.Run("second page", func(t *testing.T) {
		result, err := svc.UserLinks(ctx, userID, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, result.CurrentPage)
		assert.Len(t, result.URLs, 2)
	})

	t.Run("other users see nothing", func(t *testing.T) {
		otherID := signUpTestUser(t, svc, "other@x.com")
		result, err := svc.UserLinks(ctx, otherID, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.TotalURLs)
		assert.Empty(t, result.URLs)
	})
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := signUpTestUser(t, svc, "a@x.com")

	_, err := svc.Shorten(ctx, userID, models.ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Users)
	assert.Equal(t, int64(1), stats.URLs)
}

func parseShortURL(shortURL string) (string, bool) {
	const prefix = testShortURLBase + "/"
	if len(shortURL) <= len(prefix) || shortURL[:len(prefix)] != prefix {
		return "", false
	}

	return shortURL[len(prefix):], true
}
