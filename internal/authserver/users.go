package authserver

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"parley/internal/domain"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("invalid email or password")
)

const bcryptCost = 12

// UserRepo stores accounts in SQLite. Emails are unique case-insensitively;
// they are lowercased before storage and lookup.
type UserRepo struct {
	db *sql.DB
}

func OpenUserRepo(path string) (*UserRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	repo := &UserRepo{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *UserRepo) Close() error { return r.db.Close() }

func (r *UserRepo) migrate() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Create registers an account and returns it. The password is hashed with
// bcrypt; the plaintext is never stored.
func (r *UserRepo) Create(ctx context.Context, name, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var exists int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email)
	if err := row.Scan(&exists); err != nil {
		return domain.User{}, err
	}
	if exists > 0 {
		return domain.User{}, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users(id, email, name, password_hash, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
		user.ID, user.Email, user.Name, string(hash), now.Unix(), now.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate checks credentials and returns the account. Wrong email and
// wrong password both come back as ErrBadCredentials.
func (r *UserRepo) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		user      domain.User
		hash      string
		createdAt int64
		updatedAt int64
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at FROM users WHERE email = ?`, email)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &hash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.User{}, ErrBadCredentials
	}

	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return user, nil
}

// Get looks an account up by id.
func (r *UserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	var (
		user      domain.User
		createdAt int64
		updatedAt int64
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?`, id)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return user, nil
}
