package jsondb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbelenkov/shrink/internal/db/storage"
	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/user"
)

const testDBFileName = "db_test.json"

func newTestDB(t *testing.T) *JSONDB {
	t.Helper()

	theStorage, err := New(testDBFileName)
	require.NoError(t, err)
	require.NotNil(t, theStorage)

	t.Cleanup(func() {
		require.NoError(t, theStorage.Close())
		require.NoError(t, os.Remove(testDBFileName))
	})

	return theStorage
}

func TestUsers(t *testing.T) {
	theStorage := newTestDB(t)
	ctx := context.Background()

	usr := &user.User{
		Email:        "a@x.com",
		FirstName:    "A",
		PasswordSalt: "some salt",
		PasswordHash: "some hash",
	}
	err := theStorage.CreateUser(ctx, usr)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID, "CreateUser should assign an ID")
	assert.False(t, usr.CreatedAt.IsZero())

	t.Run("duplicate email", func(t *testing.T) {
		err := theStorage.CreateUser(ctx, &user.User{Email: "a@x.com", FirstName: "B"})
		assert.ErrorIs(t, err, storage.ErrEmailTaken)
	})

	t.Run("find by email", func(t *testing.T) {
		found, err := theStorage.FindUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, found.ID)
	})

	t.Run("find by id", func(t *testing.T) {
		found, err := theStorage.FindUserByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", found.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := theStorage.FindUserByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestLinks(t *testing.T) {
	theStorage := newTestDB(t)
	ctx := context.Background()

	owner := &user.User{Email: "owner@x.com", FirstName: "O"}
	require.NoError(t, theStorage.CreateUser(ctx, owner))

	lnk := &link.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abcd1234",
		UserID:      owner.ID,
	}
	require.NoError(t, theStorage.CreateLink(ctx, lnk))
	assert.NotEmpty(t, lnk.ID)
	assert.Zero(t, lnk.Clicks, "a fresh link should have zero clicks")

	t.Run("duplicate code", func(t *testing.T) {
		err := theStorage.CreateLink(ctx, &link.Link{
			OriginalURL: "https://other.example.com",
			ShortCode:   "abcd1234",
			UserID:      owner.ID,
		})
		assert.ErrorIs(t, err, storage.ErrCodeTaken)
	})

	t.Run("find by code", func(t *testing.T) {
		found, err := theStorage.FindLinkByCode(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", found.OriginalURL)
	})

	t.Run("code existence", func(t *testing.T) {
		exists, err := theStorage.IsCodeExists(ctx, "abcd1234")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = theStorage.IsCodeExists(ctx, "ffffffff")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("increment clicks", func(t *testing.T) {
		require.NoError(t, theStorage.IncrementClicks(ctx, "abcd1234"))
		require.NoError(t, theStorage.IncrementClicks(ctx, "abcd1234"))

		found, err := theStorage.FindLinkByCode(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, int64(2), found.Clicks)
	})

	t.Run("increment of unknown code is a no-op", func(t *testing.T) {
		assert.NoError(t, theStorage.IncrementClicks(ctx, "ffffffff"))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, theStorage.DeleteLink(ctx, lnk.ID))

		_, err := theStorage.FindLinkByID(ctx, lnk.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.ErrorIs(t, theStorage.DeleteLink(ctx, lnk.ID), storage.ErrNotFound)
	})
}

func TestListLinksByUser(t *testing.T) {
	theStorage := newTestDB(t)
	ctx := context.Background()

	owner := &user.User{Email: "owner@x.com", FirstName: "O"}
	require.NoError(t, theStorage.CreateUser(ctx, owner))
	other := &user.User{Email: "other@x.com", FirstName: "X"}
	require.NoError(t, theStorage.CreateUser(ctx, other))

	codes := []string{"code-one", "code-two", "code-three"}
	for _, code := range codes {
		require.NoError(t, theStorage.CreateLink(ctx, &link.Link{
			OriginalURL: "https://example.com/" + code,
			ShortCode:   code,
			UserID:      owner.ID,
		}))
	}
	require.NoError(t, theStorage.CreateLink(ctx, &link.Link{
		OriginalURL: "https://example.com/foreign",
		ShortCode:   "foreign",
		UserID:      other.ID,
	}))

	links, total, err := theStorage.ListLinksByUser(ctx, owner.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, links, 2)
	assert.Equal(t, "code-three", links[0].ShortCode, "newest link should come first")
	assert.Equal(t, "code-two", links[1].ShortCode)

	links, total, err = theStorage.ListLinksByUser(ctx, owner.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, links, 1)
	assert.Equal(t, "code-one", links[0].ShortCode)

	links, total, err = theStorage.ListLinksByUser(ctx, owner.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, links)
}

func TestCounts(t *testing.T) {
	theStorage := newTestDB(t)
	ctx := context.Background()

	owner := &user.User{Email: "owner@x.com", FirstName: "O"}
	require.NoError(t, theStorage.CreateUser(ctx, owner))
	require.NoError(t, theStorage.CreateLink(ctx, &link.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abcd1234",
		UserID:      owner.ID,
	}))

	users, err := theStorage.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)

	links, err := theStorage.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), links)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	theStorage, err := New(testDBFileName)
	require.NoError(t, err)
	defer os.Remove(testDBFileName)

	owner := &user.User{Email: "owner@x.com", FirstName: "O"}
	require.NoError(t, theStorage.CreateUser(ctx, owner))
	require.NoError(t, theStorage.CreateLink(ctx, &link.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abcd1234",
		UserID:      owner.ID,
	}))
	require.NoError(t, theStorage.Close())

	reloaded, err := New(testDBFileName)
	require.NoError(t, err)

	found, err := reloaded.FindLinkByCode(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", found.OriginalURL)

	foundUser, err := reloaded.FindUserByEmail(ctx, "owner@x.com")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, foundUser.ID)
}
