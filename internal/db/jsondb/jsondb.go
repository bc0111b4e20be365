// Package jsondb is a JSON-file-backed implementation of the storage
// contract. The whole dataset lives in memory and is flushed to the
// file on Close. It serves development runs without a database and the
// package tests.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbelenkov/shrink/internal/db/storage"
	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/user"
)

// CacheStruct holds the serialized dataset. Links keep insertion order,
// which matches creation-time order.
type CacheStruct struct {
	Users []*user.User
	Links []*link.Link
}

// JSONDB is the file-backed storage. All operations are guarded by a
// single RWMutex because the HTTP server is concurrent.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// New loads the dataset from fileName, creating an empty file when it
// does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
		if err := parseJSONFile(db.fileName, &db.Cache); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": [],
	"Links": []
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

// CreateUser stores a new user, assigning an ID and creation time.
// Returns storage.ErrEmailTaken when the email is already registered.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Email == usr.Email {
			return storage.ErrEmailTaken
		}
	}

	usr.ID = uuid.New().String()
	usr.CreatedAt = time.Now()
	db.Cache.Users = append(db.Cache.Users, usr)

	return nil
}

// FindUserByEmail returns the user registered under email or storage.ErrNotFound.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			return usr, nil
		}
	}

	return nil, storage.ErrNotFound
}

// FindUserByID returns the user with the given ID or storage.ErrNotFound.
func (db *JSONDB) FindUserByID(ctx context.Context, userID string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.ID == userID {
			return usr, nil
		}
	}

	return nil, storage.ErrNotFound
}

// CreateLink stores a new link, assigning an ID and timestamps.
// Returns storage.ErrCodeTaken when the short code is already in use.
func (db *JSONDB) CreateLink(ctx context.Context, lnk *link.Link) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Links {
		if existing.ShortCode == lnk.ShortCode {
			return storage.ErrCodeTaken
		}
	}

	now := time.Now()
	lnk.ID = uuid.New().String()
	lnk.CreatedAt = now
	lnk.UpdatedAt = now
	db.Cache.Links = append(db.Cache.Links, lnk)

	return nil
}

// FindLinkByCode returns the link with the given short code or storage.ErrNotFound.
func (db *JSONDB) FindLinkByCode(ctx context.Context, code string) (*link.Link, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, lnk := range db.Cache.Links {
		if lnk.ShortCode == code {
			return lnk, nil
		}
	}

	return nil, storage.ErrNotFound
}

// FindLinkByID returns the link with the given ID or storage.ErrNotFound.
func (db *JSONDB) FindLinkByID(ctx context.Context, linkID string) (*link.Link, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, lnk := range db.Cache.Links {
		if lnk.ID == linkID {
			return lnk, nil
		}
	}

	return nil, storage.ErrNotFound
}

// ListLinksByUser returns one page of the user's links ordered by
// creation time, newest first, together with the user's total count.
func (db *JSONDB) ListLinksByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]link.Link, int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	// Links are appended in creation order, so walking backwards yields
	// newest first.
	owned := make([]link.Link, 0)
	for i := len(db.Cache.Links) - 1; i >= 0; i-- {
		if db.Cache.Links[i].UserID == userID {
			owned = append(owned, *db.Cache.Links[i])
		}
	}

	total := int64(len(owned))
	if offset >= len(owned) {
		return []link.Link{}, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}

	return owned[offset:end], total, nil
}

// IncrementClicks adds one to the click counter of the link with the
// given code. Unknown codes are a no-op.
func (db *JSONDB) IncrementClicks(ctx context.Context, code string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, lnk := range db.Cache.Links {
		if lnk.ShortCode == code {
			lnk.Clicks++
			lnk.UpdatedAt = time.Now()
			return nil
		}
	}

	return nil
}

// DeleteLink removes the link with the given ID.
// Returns storage.ErrNotFound when it does not exist.
func (db *JSONDB) DeleteLink(ctx context.Context, linkID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, lnk := range db.Cache.Links {
		if lnk.ID == linkID {
			db.Cache.Links = append(db.Cache.Links[:i], db.Cache.Links[i+1:]...)
			return nil
		}
	}

	return storage.ErrNotFound
}

// IsCodeExists reports whether the given short code is already in use.
func (db *JSONDB) IsCodeExists(ctx context.Context, code string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, lnk := range db.Cache.Links {
		if lnk.ShortCode == code {
			return true, nil
		}
	}

	return false, nil
}

// CountUsers returns the total number of registered users.
func (db *JSONDB) CountUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// CountLinks returns the total number of stored links.
func (db *JSONDB) CountLinks(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Links)), nil
}

// Ping always succeeds for the file-backed storage.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the dataset to the backing file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}
