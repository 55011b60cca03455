package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

func (p *Postgres) CreateDeployment(ctx context.Context, d data.Deployment) (*data.Deployment, error) {
	now := time.Now().UTC()
	d.ID = uuid.New()
	d.CreatedAt, d.UpdatedAt = now, now

	limits, err := marshalLimits(d)
	if err != nil {
		return nil, err
	}

	query, _, err := p.goqu.Insert(p.tDeployments).Rows(goqu.Record{
		"id":                      d.ID,
		"project_id":              d.ProjectID,
		"model_name":              d.ModelName,
		"load_balancing":          string(d.LoadBalancing),
		"provider_model_override": d.ProviderModelOverride,
		"limits":                  limits,
		"created_at":              d.CreatedAt,
		"updated_at":              d.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create deployment: %w", err)
	}
	return &d, nil
}

// limitsDoc is the JSON shape stored in the deployments.limits column —
// recorded, never enforced by the proxy pipeline.
type limitsDoc struct {
	Request data.RequestLimits `json:"request"`
	Budget  data.BudgetLimits  `json:"budget"`
	Token   data.TokenLimits   `json:"token"`
}

func marshalLimits(d data.Deployment) ([]byte, error) {
	b, err := json.Marshal(limitsDoc{Request: d.Request, Budget: d.Budget, Token: d.Token})
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal deployment limits: %w", err)
	}
	return b, nil
}

func (p *Postgres) scanDeployment(row *sql.Row) (*data.Deployment, error) {
	var (
		d        data.Deployment
		lb       string
		limitsJS []byte
	)
	err := row.Scan(&d.ID, &d.ProjectID, &d.ModelName, &lb, &d.ProviderModelOverride, &limitsJS, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan deployment: %w", err)
	}
	d.LoadBalancing = data.LoadBalancingStrategy(lb)
	var doc limitsDoc
	if len(limitsJS) > 0 {
		if err := json.Unmarshal(limitsJS, &doc); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal deployment limits: %w", err)
		}
		d.Request, d.Budget, d.Token = doc.Request, doc.Budget, doc.Token
	}
	return &d, nil
}

const deploymentCols = "id, project_id, model_name, load_balancing, provider_model_override, limits, created_at, updated_at"

func (p *Postgres) GetDeployment(ctx context.Context, id uuid.UUID) (*data.Deployment, error) {
	query, _, err := p.goqu.From(p.tDeployments).
		Select(goqu.L(deploymentCols)).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get deployment query: %w", err)
	}
	return p.scanDeployment(p.db.QueryRowContext(ctx, query))
}

// GetDeploymentByModel resolves a Deployment by its project and callable
// model name — the lookup the graph resolver drives on every cache miss.
func (p *Postgres) GetDeploymentByModel(ctx context.Context, projectID uuid.UUID, modelName string) (*data.Deployment, error) {
	query, _, err := p.goqu.From(p.tDeployments).
		Select(goqu.L(deploymentCols)).
		Where(goqu.I("project_id").Eq(projectID), goqu.I("model_name").Eq(modelName)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get deployment by model query: %w", err)
	}
	return p.scanDeployment(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) ListDeploymentsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Deployment, error) {
	query, _, err := p.goqu.From(p.tDeployments).
		Select(goqu.L(deploymentCols)).
		Where(goqu.I("project_id").Eq(projectID)).
		Order(goqu.I("model_name").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list deployments query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deployments: %w", err)
	}
	defer rows.Close()

	var out []data.Deployment
	for rows.Next() {
		var (
			d        data.Deployment
			lb       string
			limitsJS []byte
		)
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.ModelName, &lb, &d.ProviderModelOverride, &limitsJS, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan deployment row: %w", err)
		}
		d.LoadBalancing = data.LoadBalancingStrategy(lb)
		var doc limitsDoc
		if len(limitsJS) > 0 {
			if err := json.Unmarshal(limitsJS, &doc); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal deployment limits: %w", err)
			}
			d.Request, d.Budget, d.Token = doc.Request, doc.Budget, doc.Token
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateDeployment(ctx context.Context, d data.Deployment) (*data.Deployment, error) {
	d.UpdatedAt = time.Now().UTC()
	limits, err := marshalLimits(d)
	if err != nil {
		return nil, err
	}
	query, _, err := p.goqu.Update(p.tDeployments).Set(goqu.Record{
		"model_name":              d.ModelName,
		"load_balancing":          string(d.LoadBalancing),
		"provider_model_override": d.ProviderModelOverride,
		"limits":                  limits,
		"updated_at":              d.UpdatedAt,
	}).Where(goqu.I("id").Eq(d.ID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update deployment: %w", err)
	}
	return p.GetDeployment(ctx, d.ID)
}

func (p *Postgres) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tDeployments).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete deployment: %w", err)
	}
	return nil
}
