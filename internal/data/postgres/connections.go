package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
)

const connectionCols = "id, project_id, provider, encrypted_credential, credential_salt, endpoint_url, api_version, created_at, updated_at"

// CreateConnection encrypts plaintextCredential under a fresh per-row salt
// before writing it — the row never holds plaintext.
func (p *Postgres) CreateConnection(ctx context.Context, c data.Connection, plaintextCredential string) (*data.Connection, error) {
	now := time.Now().UTC()
	c.ID = uuid.New()
	c.CreatedAt, c.UpdatedAt = now, now

	salt, err := randomSalt()
	if err != nil {
		return nil, fmt.Errorf("postgres: generate connection salt: %w", err)
	}
	enc, err := cryptoutil.Encrypt([]byte(plaintextCredential), salt, p.pepper)
	if err != nil {
		return nil, fmt.Errorf("postgres: encrypt connection credential: %w", err)
	}
	c.CredentialSalt, c.EncryptedCredential = salt, enc

	query, _, err := p.goqu.Insert(p.tConnections).Rows(goqu.Record{
		"id":                   c.ID,
		"project_id":           c.ProjectID,
		"provider":             string(c.Provider),
		"encrypted_credential": c.EncryptedCredential,
		"credential_salt":      c.CredentialSalt,
		"endpoint_url":         c.EndpointURL,
		"api_version":          c.APIVersion,
		"created_at":           c.CreatedAt,
		"updated_at":           c.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create connection query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create connection: %w", err)
	}
	return &c, nil
}

func (p *Postgres) scanConnection(row *sql.Row) (*data.Connection, error) {
	var (
		c        data.Connection
		provider string
	)
	err := row.Scan(&c.ID, &c.ProjectID, &provider, &c.EncryptedCredential, &c.CredentialSalt, &c.EndpointURL, &c.APIVersion, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan connection: %w", err)
	}
	c.Provider = data.ProviderKind(provider)
	return &c, nil
}

func (p *Postgres) GetConnection(ctx context.Context, id uuid.UUID) (*data.Connection, error) {
	query, _, err := p.goqu.From(p.tConnections).
		Select(goqu.L(connectionCols)).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get connection query: %w", err)
	}
	return p.scanConnection(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) ListConnectionsByProject(ctx context.Context, projectID uuid.UUID) ([]data.Connection, error) {
	query, _, err := p.goqu.From(p.tConnections).
		Select(goqu.L(connectionCols)).
		Where(goqu.I("project_id").Eq(projectID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list connections query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list connections: %w", err)
	}
	defer rows.Close()

	var out []data.Connection
	for rows.Next() {
		var (
			c        data.Connection
			provider string
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &provider, &c.EncryptedCredential, &c.CredentialSalt, &c.EndpointURL, &c.APIVersion, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan connection row: %w", err)
		}
		c.Provider = data.ProviderKind(provider)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConnection updates a Connection's endpoint/version, and re-encrypts
// the credential under a fresh salt when plaintextCredential is non-nil.
func (p *Postgres) UpdateConnection(ctx context.Context, c data.Connection, plaintextCredential *string) (*data.Connection, error) {
	c.UpdatedAt = time.Now().UTC()

	set := goqu.Record{
		"endpoint_url": c.EndpointURL,
		"api_version":  c.APIVersion,
		"updated_at":   c.UpdatedAt,
	}

	if plaintextCredential != nil {
		salt, err := randomSalt()
		if err != nil {
			return nil, fmt.Errorf("postgres: generate connection salt: %w", err)
		}
		enc, err := cryptoutil.Encrypt([]byte(*plaintextCredential), salt, p.pepper)
		if err != nil {
			return nil, fmt.Errorf("postgres: encrypt connection credential: %w", err)
		}
		set["encrypted_credential"] = enc
		set["credential_salt"] = salt
	}

	query, _, err := p.goqu.Update(p.tConnections).Set(set).Where(goqu.I("id").Eq(c.ID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update connection query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update connection: %w", err)
	}
	return p.GetConnection(ctx, c.ID)
}

func (p *Postgres) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tConnections).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete connection query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete connection: %w", err)
	}
	return nil
}

// DecryptConnectionCredential reveals a Connection's plaintext credential,
// for use when constructing the per-provider HTTP client.
func (p *Postgres) DecryptConnectionCredential(ctx context.Context, c data.Connection) (string, error) {
	plaintext, err := cryptoutil.Decrypt(c.EncryptedCredential, c.CredentialSalt, p.pepper)
	if err != nil {
		return "", fmt.Errorf("postgres: decrypt connection credential: %w", err)
	}
	return string(plaintext), nil
}

// ─── ConnectionDeployment ───

func (p *Postgres) CreateConnectionDeployment(ctx context.Context, cd data.ConnectionDeployment) (*data.ConnectionDeployment, error) {
	query, _, err := p.goqu.Insert(p.tConnectionDeployments).Rows(goqu.Record{
		"deployment_id": cd.DeploymentID,
		"connection_id": cd.ConnectionID,
		"weight":        cd.Weight,
		"enabled":       cd.Enabled,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create connection_deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create connection_deployment: %w", err)
	}
	return &cd, nil
}

// ListConnectionDeployments returns every enabled ConnectionDeployment for
// deploymentID joined with its Connection, ordered by descending weight —
// the graph resolver's raw candidate source before load balancing reorders
// it.
func (p *Postgres) ListConnectionDeployments(ctx context.Context, deploymentID uuid.UUID) ([]data.GraphCandidate, error) {
	query, _, err := p.goqu.From(p.tConnectionDeployments.As("cd")).
		Select(
			goqu.I("cd.deployment_id"), goqu.I("cd.connection_id"), goqu.I("cd.weight"), goqu.I("cd.enabled"),
			goqu.I("c.id"), goqu.I("c.project_id"), goqu.I("c.provider"), goqu.I("c.encrypted_credential"),
			goqu.I("c.credential_salt"), goqu.I("c.endpoint_url"), goqu.I("c.api_version"), goqu.I("c.created_at"), goqu.I("c.updated_at"),
		).
		InnerJoin(p.tConnections.As("c"), goqu.On(goqu.I("cd.connection_id").Eq(goqu.I("c.id")))).
		Where(goqu.I("cd.deployment_id").Eq(deploymentID), goqu.I("cd.enabled").Eq(true)).
		Order(goqu.I("cd.weight").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list connection_deployments query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list connection_deployments: %w", err)
	}
	defer rows.Close()

	var out []data.GraphCandidate
	for rows.Next() {
		var (
			cand     data.GraphCandidate
			provider string
		)
		if err := rows.Scan(
			&cand.ConnectionDeployment.DeploymentID, &cand.ConnectionDeployment.ConnectionID, &cand.ConnectionDeployment.Weight, &cand.ConnectionDeployment.Enabled,
			&cand.Connection.ID, &cand.Connection.ProjectID, &provider, &cand.Connection.EncryptedCredential,
			&cand.Connection.CredentialSalt, &cand.Connection.EndpointURL, &cand.Connection.APIVersion, &cand.Connection.CreatedAt, &cand.Connection.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan connection_deployment row: %w", err)
		}
		cand.Connection.Provider = data.ProviderKind(provider)
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateConnectionDeployment(ctx context.Context, cd data.ConnectionDeployment) (*data.ConnectionDeployment, error) {
	query, _, err := p.goqu.Update(p.tConnectionDeployments).Set(goqu.Record{
		"weight":  cd.Weight,
		"enabled": cd.Enabled,
	}).Where(goqu.I("deployment_id").Eq(cd.DeploymentID), goqu.I("connection_id").Eq(cd.ConnectionID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build update connection_deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: update connection_deployment: %w", err)
	}
	return &cd, nil
}

func (p *Postgres) DeleteConnectionDeployment(ctx context.Context, deploymentID, connectionID uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tConnectionDeployments).
		Where(goqu.I("deployment_id").Eq(deploymentID), goqu.I("connection_id").Eq(connectionID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete connection_deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete connection_deployment: %w", err)
	}
	return nil
}
