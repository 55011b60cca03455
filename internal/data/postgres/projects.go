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

func (p *Postgres) CreateProject(ctx context.Context, pr data.Project) (*data.Project, error) {
	now := time.Now().UTC()
	pr.ID = uuid.New()
	pr.CreatedAt, pr.UpdatedAt = now, now

	query, _, err := p.goqu.Insert(p.tProjects).Rows(goqu.Record{
		"id":         pr.ID,
		"name":       pr.Name,
		"owner_id":   pr.OwnerID,
		"created_at": pr.CreatedAt,
		"updated_at": pr.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create project query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create project: %w", err)
	}
	return &pr, nil
}

func (p *Postgres) scanProject(row *sql.Row) (*data.Project, error) {
	var pr data.Project
	err := row.Scan(&pr.ID, &pr.Name, &pr.OwnerID, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan project: %w", err)
	}
	return &pr, nil
}

func (p *Postgres) GetProject(ctx context.Context, id uuid.UUID) (*data.Project, error) {
	query, _, err := p.goqu.From(p.tProjects).
		Select("id", "name", "owner_id", "created_at", "updated_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get project query: %w", err)
	}
	return p.scanProject(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) ListProjects(ctx context.Context) ([]data.Project, error) {
	query, _, err := p.goqu.From(p.tProjects).
		Select("id", "name", "owner_id", "created_at", "updated_at").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list projects query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list projects: %w", err)
	}
	defer rows.Close()

	var out []data.Project
	for rows.Next() {
		var pr data.Project
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.OwnerID, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan project row: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateProject(ctx context.Context, pr data.Project) (*data.Project, error) {
	pr.UpdatedAt = time.Now().UTC()
	query, _, err := p.goqu.Update(p.tProjects).Set(goqu.Record{
		"name":       pr.Name,
		"owner_id":   pr.OwnerID,
		"updated_at": pr.UpdatedAt,
	}).Where(goqu.I("id").Eq(pr.ID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update project query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update project: %w", err)
	}
	return p.GetProject(ctx, pr.ID)
}

func (p *Postgres) DeleteProject(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tProjects).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete project query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete project: %w", err)
	}
	return nil
}
