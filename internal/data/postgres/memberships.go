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

func (p *Postgres) CreateMembership(ctx context.Context, m data.Membership) (*data.Membership, error) {
	m.CreatedAt = time.Now().UTC()
	query, _, err := p.goqu.Insert(p.tMemberships).Rows(goqu.Record{
		"project_id": m.ProjectID,
		"user_id":    m.UserID,
		"role":       string(m.Role),
		"created_at": m.CreatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create membership query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create membership: %w", err)
	}
	return &m, nil
}

func scanMembership(row *sql.Row) (*data.Membership, error) {
	var (
		m    data.Membership
		role string
	)
	err := row.Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan membership: %w", err)
	}
	m.Role = data.ProjectRole(role)
	return &m, nil
}

func (p *Postgres) GetMembership(ctx context.Context, projectID, userID uuid.UUID) (*data.Membership, error) {
	query, _, err := p.goqu.From(p.tMemberships).
		Select("project_id", "user_id", "role", "created_at").
		Where(goqu.I("project_id").Eq(projectID), goqu.I("user_id").Eq(userID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get membership query: %w", err)
	}
	return scanMembership(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) listMemberships(ctx context.Context, col string, id uuid.UUID) ([]data.Membership, error) {
	query, _, err := p.goqu.From(p.tMemberships).
		Select("project_id", "user_id", "role", "created_at").
		Where(goqu.I(col).Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list memberships query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memberships: %w", err)
	}
	defer rows.Close()

	var out []data.Membership
	for rows.Next() {
		var (
			m    data.Membership
			role string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan membership row: %w", err)
		}
		m.Role = data.ProjectRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) ListMembershipsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Membership, error) {
	return p.listMemberships(ctx, "project_id", projectID)
}

func (p *Postgres) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]data.Membership, error) {
	return p.listMemberships(ctx, "user_id", userID)
}

func (p *Postgres) UpdateMembership(ctx context.Context, m data.Membership) (*data.Membership, error) {
	query, _, err := p.goqu.Update(p.tMemberships).Set(goqu.Record{
		"role": string(m.Role),
	}).Where(goqu.I("project_id").Eq(m.ProjectID), goqu.I("user_id").Eq(m.UserID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update membership query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update membership: %w", err)
	}
	return p.GetMembership(ctx, m.ProjectID, m.UserID)
}

func (p *Postgres) DeleteMembership(ctx context.Context, projectID, userID uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tMemberships).
		Where(goqu.I("project_id").Eq(projectID), goqu.I("user_id").Eq(userID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete membership query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete membership: %w", err)
	}
	return nil
}

// ─── ProjectInviteCode ───

func (p *Postgres) CreateProjectInviteCode(ctx context.Context, c data.ProjectInviteCode) (*data.ProjectInviteCode, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	query, _, err := p.goqu.Insert(p.tProjectInviteCodes).Rows(goqu.Record{
		"id":         c.ID,
		"project_id": c.ProjectID,
		"role":       string(c.Role),
		"expires_at": c.ExpiresAt,
		"used_at":    c.UsedAt,
		"created_at": c.CreatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create invite code query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create invite code: %w", err)
	}
	return &c, nil
}

func (p *Postgres) GetProjectInviteCode(ctx context.Context, id uuid.UUID) (*data.ProjectInviteCode, error) {
	query, _, err := p.goqu.From(p.tProjectInviteCodes).
		Select("id", "project_id", "role", "expires_at", "used_at", "created_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get invite code query: %w", err)
	}
	var (
		c    data.ProjectInviteCode
		role string
	)
	err = p.db.QueryRowContext(ctx, query).Scan(&c.ID, &c.ProjectID, &role, &c.ExpiresAt, &c.UsedAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan invite code: %w", err)
	}
	c.Role = data.ProjectRole(role)
	return &c, nil
}

// RedeemProjectInviteCode atomically marks the invite code used, failing if
// it was already redeemed or has expired.
func (p *Postgres) RedeemProjectInviteCode(ctx context.Context, id uuid.UUID) (*data.ProjectInviteCode, error) {
	now := time.Now().UTC()
	query, _, err := p.goqu.Update(p.tProjectInviteCodes).
		Set(goqu.Record{"used_at": now}).
		Where(
			goqu.I("id").Eq(id),
			goqu.I("used_at").IsNull(),
			goqu.I("expires_at").Gt(now),
		).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build redeem invite code query: %w", err)
	}
	res, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: redeem invite code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return p.GetProjectInviteCode(ctx, id)
}

func (p *Postgres) DeleteProjectInviteCode(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tProjectInviteCodes).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete invite code query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete invite code: %w", err)
	}
	return nil
}

// ─── SessionToken ───

func (p *Postgres) CreateSessionToken(ctx context.Context, s data.SessionToken) (*data.SessionToken, error) {
	s.CreatedAt = time.Now().UTC()
	query, _, err := p.goqu.Insert(p.tSessionTokens).Rows(goqu.Record{
		"id":         s.ID,
		"user_id":    s.UserID,
		"expires_at": s.ExpiresAt,
		"revoked":    s.Revoked,
		"created_at": s.CreatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create session token query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create session token: %w", err)
	}
	return &s, nil
}

func (p *Postgres) GetSessionToken(ctx context.Context, id uuid.UUID) (*data.SessionToken, error) {
	query, _, err := p.goqu.From(p.tSessionTokens).
		Select("id", "user_id", "expires_at", "revoked", "created_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get session token query: %w", err)
	}
	var s data.SessionToken
	err = p.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.Revoked, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan session token: %w", err)
	}
	return &s, nil
}

func (p *Postgres) RevokeSessionToken(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Update(p.tSessionTokens).
		Set(goqu.Record{"revoked": true}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build revoke session token query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: revoke session token: %w", err)
	}
	return nil
}
