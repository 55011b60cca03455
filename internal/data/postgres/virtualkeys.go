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

const virtualKeyCols = "id, project_id, encrypted_secret, credential_salt, blocked, created_at, updated_at"

// CreateVirtualKey derives the key's ID from the plaintext key material and
// stores only the encrypted form.
func (p *Postgres) CreateVirtualKey(ctx context.Context, v data.VirtualKey, plaintextKey string) (*data.VirtualKey, error) {
	now := time.Now().UTC()
	v.ID = cryptoutil.DeriveID(plaintextKey)
	v.CreatedAt, v.UpdatedAt = now, now

	salt, err := randomSalt()
	if err != nil {
		return nil, fmt.Errorf("postgres: generate virtual key salt: %w", err)
	}
	enc, err := cryptoutil.Encrypt([]byte(plaintextKey), salt, p.pepper)
	if err != nil {
		return nil, fmt.Errorf("postgres: encrypt virtual key: %w", err)
	}
	v.CredentialSalt, v.EncryptedSecret = salt, enc

	query, _, err := p.goqu.Insert(p.tVirtualKeys).Rows(goqu.Record{
		"id":               v.ID,
		"project_id":       v.ProjectID,
		"encrypted_secret": v.EncryptedSecret,
		"credential_salt":  v.CredentialSalt,
		"blocked":          v.Blocked,
		"created_at":       v.CreatedAt,
		"updated_at":       v.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create virtual key query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create virtual key: %w", err)
	}
	return &v, nil
}

func (p *Postgres) scanVirtualKey(row *sql.Row) (*data.VirtualKey, error) {
	var v data.VirtualKey
	err := row.Scan(&v.ID, &v.ProjectID, &v.EncryptedSecret, &v.CredentialSalt, &v.Blocked, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan virtual key: %w", err)
	}
	return &v, nil
}

// GetVirtualKey looks up by ID — callers resolve the plaintext key's ID via
// cryptoutil.DeriveID before calling this, so no scan-and-compare is ever
// needed on the hot path.
func (p *Postgres) GetVirtualKey(ctx context.Context, id uuid.UUID) (*data.VirtualKey, error) {
	query, _, err := p.goqu.From(p.tVirtualKeys).
		Select(goqu.L(virtualKeyCols)).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get virtual key query: %w", err)
	}
	return p.scanVirtualKey(p.db.QueryRowContext(ctx, query))
}

func (p *Postgres) ListVirtualKeysByProject(ctx context.Context, projectID uuid.UUID) ([]data.VirtualKey, error) {
	query, _, err := p.goqu.From(p.tVirtualKeys).
		Select(goqu.L(virtualKeyCols)).
		Where(goqu.I("project_id").Eq(projectID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list virtual keys query: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list virtual keys: %w", err)
	}
	defer rows.Close()

	var out []data.VirtualKey
	for rows.Next() {
		var v data.VirtualKey
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.EncryptedSecret, &v.CredentialSalt, &v.Blocked, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan virtual key row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) BlockVirtualKey(ctx context.Context, id uuid.UUID, blocked bool) error {
	query, _, err := p.goqu.Update(p.tVirtualKeys).
		Set(goqu.Record{"blocked": blocked, "updated_at": time.Now().UTC()}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build block virtual key query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: block virtual key: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteVirtualKey(ctx context.Context, id uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tVirtualKeys).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete virtual key query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete virtual key: %w", err)
	}
	return nil
}

// ─── VirtualKeyDeployment ───

func (p *Postgres) CreateVirtualKeyDeployment(ctx context.Context, vkd data.VirtualKeyDeployment) (*data.VirtualKeyDeployment, error) {
	query, _, err := p.goqu.Insert(p.tVirtualKeyDeployments).Rows(goqu.Record{
		"virtual_key_id": vkd.VirtualKeyID,
		"deployment_id":  vkd.DeploymentID,
		"allowed":        vkd.Allowed,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build create virtual_key_deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("postgres: create virtual_key_deployment: %w", err)
	}
	return &vkd, nil
}

func (p *Postgres) GetVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) (*data.VirtualKeyDeployment, error) {
	query, _, err := p.goqu.From(p.tVirtualKeyDeployments).
		Select("virtual_key_id", "deployment_id", "allowed").
		Where(goqu.I("virtual_key_id").Eq(virtualKeyID), goqu.I("deployment_id").Eq(deploymentID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get virtual_key_deployment query: %w", err)
	}
	var vkd data.VirtualKeyDeployment
	err = p.db.QueryRowContext(ctx, query).Scan(&vkd.VirtualKeyID, &vkd.DeploymentID, &vkd.Allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan virtual_key_deployment: %w", err)
	}
	return &vkd, nil
}

func (p *Postgres) DeleteVirtualKeyDeployment(ctx context.Context, virtualKeyID, deploymentID uuid.UUID) error {
	query, _, err := p.goqu.Delete(p.tVirtualKeyDeployments).
		Where(goqu.I("virtual_key_id").Eq(virtualKeyID), goqu.I("deployment_id").Eq(deploymentID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete virtual_key_deployment query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: delete virtual_key_deployment: %w", err)
	}
	return nil
}
