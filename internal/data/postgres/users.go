package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

func (p *Postgres) CreateUser(ctx context.Context, u data.User) (*data.User, error) {
	now := time.Now().UTC()
	u.ID = uuid.New()
	u.CreatedAt, u.UpdatedAt = now, now

	query, _, err := p.goqu.Insert(p.tUsers).Rows(goqu.Record{
		"id":            u.ID,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create user query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) scanUser(row *sql.Row) (*data.User, error) {
	var (
		u    data.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	u.Role = data.AppRole(role)
	return &u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*data.User, error) {
	query, _, err := p.goqu.From(p.tUsers).
		Select("id", "email", "password_hash", "role", "created_at", "updated_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get user query: %w", err)
	}
	return p.scanUser(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	query, _, err := p.goqu.From(p.tUsers).
		Select("id", "email", "password_hash", "role", "created_at", "updated_at").
		Where(goqu.I("email").Eq(email)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get user by email query: %w", err)
	}
	return p.scanUser(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) ListUsers(ctx context.Context) ([]data.User, error) {
	query, _, err := p.goqu.From(p.tUsers).
		Select("id", "email", "password_hash", "role", "created_at", "updated_at").
		Order(goqu.I("email").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list users query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	var out []data.User
	for rows.Next() {
		var (
			u    data.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan user row: %w", err)
		}
		u.Role = data.AppRole(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateUser(ctx context.Context, u data.User) (*data.User, error) {
	u.UpdatedAt = time.Now().UTC()
	query, _, err := p.goqu.Update(p.tUsers).Set(goqu.Record{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
		"updated_at":    u.UpdatedAt,
	}).Where(goqu.I("id").Eq(u.ID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update user query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update user: %w", err)
	}
	return p.GetUser(ctx, u.ID)
}

func (p *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tUsers).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete user query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete user: %w", err)
	}
	return nil
}
