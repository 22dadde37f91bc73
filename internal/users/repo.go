package users

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lokmanguedri/motivex/internal/postgres"
)

type Repo struct{ DB postgres.DB }

const userColumns = `id, email, password_hash, name, phone, role, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repo) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// UpsertAdmin creates the account or promotes an existing one, resetting
// its password.
func (r *Repo) UpsertAdmin(ctx context.Context, email, passwordHash, phone string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role)
		VALUES ($1, $2, $3, 'Admin', $4, 'ADMIN')
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    phone = EXCLUDED.phone,
		    role = 'ADMIN',
		    updated_at = now()
		RETURNING `+userColumns,
		uuid.NewString(), email, passwordHash, phone)
}

func (r *Repo) getOne(ctx context.Context, sql string, args ...any) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, sql, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if postgres.IsNoRows(err) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
