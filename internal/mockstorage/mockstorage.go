// Package mockstorage provides a testify-based mock implementation of
// the storage contract. It is used for unit testing HTTP handlers and
// the service layer by simulating storage behavior, including failures
// the real backends only produce under fault conditions.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/user"
)

// StorageMock is a testify mock that implements the storage contract.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks user creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// FindUserByEmail mocks the email lookup.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// FindUserByID mocks the user ID lookup.
func (m *StorageMock) FindUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// CreateLink mocks link creation.
func (m *StorageMock) CreateLink(ctx context.Context, lnk *link.Link) error {
	args := m.Called(ctx, lnk)
	return args.Error(0)
}

// FindLinkByCode mocks the short-code lookup.
func (m *StorageMock) FindLinkByCode(ctx context.Context, code string) (*link.Link, error) {
	args := m.Called(ctx, code)
	lnk, _ := args.Get(0).(*link.Link)
	return lnk, args.Error(1)
}

// FindLinkByID mocks the link ID lookup.
func (m *StorageMock) FindLinkByID(ctx context.Context, linkID string) (*link.Link, error) {
	args := m.Called(ctx, linkID)
	lnk, _ := args.Get(0).(*link.Link)
	return lnk, args.Error(1)
}

// ListLinksByUser mocks the paginated listing.
func (m *StorageMock) ListLinksByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]link.Link, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	links, _ := args.Get(0).([]link.Link)
	return links, args.Get(1).(int64), args.Error(2)
}

// IncrementClicks mocks the click counter increment.
func (m *StorageMock) IncrementClicks(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// DeleteLink mocks link deletion.
func (m *StorageMock) DeleteLink(ctx context.Context, linkID string) error {
	args := m.Called(ctx, linkID)
	return args.Error(0)
}

// IsCodeExists mocks the short-code existence check.
func (m *StorageMock) IsCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// CountUsers mocks the user total.
func (m *StorageMock) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// CountLinks mocks the link total.
func (m *StorageMock) CountLinks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
