// Package postgresdb provides the PostgreSQL-backed implementation of
// the storage contract. It runs schema migrations on startup and maps
// unique-constraint violations to the typed storage errors.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mbelenkov/shrink/internal/db/storage"
	"github.com/mbelenkov/shrink/internal/link"
	"github.com/mbelenkov/shrink/internal/user"
)

const pgUniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage contract.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

// CreateUser inserts a new user and fills in the generated ID and
// creation time. Returns storage.ErrEmailTaken on a duplicate email.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	row := db.database.QueryRowContext(
		ctx,
		`INSERT INTO users (email, first_name, last_name, password_salt, password_hash)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
		usr.Email,
		usr.FirstName,
		usr.LastName,
		usr.PasswordSalt,
		usr.PasswordHash,
	)
	if err := row.Scan(&usr.ID, &usr.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrEmailTaken
		}
		return err
	}

	return nil
}

// FindUserByEmail fetches the user registered under the given email.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, first_name, last_name, password_salt, password_hash, created_at
			FROM users
			WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// FindUserByID fetches a user by their UUID.
func (db *PostgresDB) FindUserByID(ctx context.Context, userID string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, first_name, last_name, password_salt, password_hash, created_at
			FROM users
			WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

func scanUser(row *sql.Row) (*user.User, error) {
	usr := &user.User{}
	err := row.Scan(
		&usr.ID,
		&usr.Email,
		&usr.FirstName,
		&usr.LastName,
		&usr.PasswordSalt,
		&usr.PasswordHash,
		&usr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return usr, nil
}

// CreateLink inserts a new link and fills in the generated ID and
// timestamps. Returns storage.ErrCodeTaken on a duplicate short code.
func (db *PostgresDB) CreateLink(ctx context.Context, lnk *link.Link) error {
	row := db.database.QueryRowContext(
		ctx,
		`INSERT INTO urls (original_url, short_code, user_id)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`,
		lnk.OriginalURL,
		lnk.ShortCode,
		lnk.UserID,
	)
	if err := row.Scan(&lnk.ID, &lnk.CreatedAt, &lnk.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrCodeTaken
		}
		return err
	}

	return nil
}

// FindLinkByCode fetches the link with the given short code.
func (db *PostgresDB) FindLinkByCode(ctx context.Context, code string) (*link.Link, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, original_url, short_code, user_id, clicks, created_at, updated_at
			FROM urls
			WHERE short_code = $1`,
		code,
	)

	return scanLink(row)
}

// FindLinkByID fetches the link with the given UUID.
func (db *PostgresDB) FindLinkByID(ctx context.Context, linkID string) (*link.Link, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, original_url, short_code, user_id, clicks, created_at, updated_at
			FROM urls
			WHERE id = $1`,
		linkID,
	)

	return scanLink(row)
}

func scanLink(row *sql.Row) (*link.Link, error) {
	lnk := &link.Link{}
	err := row.Scan(
		&lnk.ID,
		&lnk.OriginalURL,
		&lnk.ShortCode,
		&lnk.UserID,
		&lnk.Clicks,
		&lnk.CreatedAt,
		&lnk.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return lnk, nil
}

// ListLinksByUser returns one page of the user's links ordered by
// creation time, newest first, together with the user's total count.
func (db *PostgresDB) ListLinksByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]link.Link, int64, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, original_url, short_code, user_id, clicks, created_at, updated_at
			FROM urls
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	links := []link.Link{}
	for rows.Next() {
		var lnk link.Link
		err = rows.Scan(
			&lnk.ID,
			&lnk.OriginalURL,
			&lnk.ShortCode,
			&lnk.UserID,
			&lnk.Clicks,
			&lnk.CreatedAt,
			&lnk.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, lnk)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM urls WHERE user_id = $1`,
		userID,
	)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	return links, total, nil
}

// IncrementClicks atomically adds one to the click counter of the link
// with the given code. Unknown codes are a no-op.
func (db *PostgresDB) IncrementClicks(ctx context.Context, code string) error {
	_, err := db.database.ExecContext(
		ctx,
		`UPDATE urls
			SET clicks = clicks + 1, updated_at = now()
			WHERE short_code = $1`,
		code,
	)

	return err
}

// DeleteLink removes the link with the given ID.
// Returns storage.ErrNotFound when no row was deleted.
func (db *PostgresDB) DeleteLink(ctx context.Context, linkID string) error {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM urls WHERE id = $1`,
		linkID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// IsCodeExists checks if the specified short code exists in the database.
func (db *PostgresDB) IsCodeExists(ctx context.Context, code string) (bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM urls WHERE short_code = $1`,
		code,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// CountUsers returns the total number of registered users.
func (db *PostgresDB) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)

	return total, err
}

// CountLinks returns the total number of stored links.
func (db *PostgresDB) CountLinks(ctx context.Context) (int64, error) {
	var total int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM urls`).Scan(&total)

	return total, err
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}
