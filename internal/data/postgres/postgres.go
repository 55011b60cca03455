// Package postgres is the Postgres-backed implementation of data.Facade.
//
// It registers the pgx/v5 stdlib driver under database/sql and builds
// every query with doug-martin/goqu/v9, table-prefixed so the schema can
// share a database with other services.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
)

const DefaultTablePrefix = "llmur_"

var (
	ConnMaxLifetime = 15 * time.Minute
	MaxIdleConns    = 5
	MaxOpenConns    = 10
)

// Postgres implements data.Facade.
type Postgres struct {
	db   *sql.DB
	goqu *goqu.Database

	pepper string // UUIDv5(application_secret), used as cryptoutil's pepper

	tUsers                 exp.IdentifierExpression
	tProjects              exp.IdentifierExpression
	tMemberships           exp.IdentifierExpression
	tProjectInviteCodes    exp.IdentifierExpression
	tSessionTokens         exp.IdentifierExpression
	tDeployments           exp.IdentifierExpression
	tConnections           exp.IdentifierExpression
	tConnectionDeployments exp.IdentifierExpression
	tVirtualKeys           exp.IdentifierExpression
	tVirtualKeyDeployments exp.IdentifierExpression
}

// Config configures a new Postgres facade.
type Config struct {
	Datasource        string
	TablePrefix       string
	ApplicationSecret string
}

// New opens the connection pool, registers the pgx driver, and returns a
// ready-to-use Facade.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.Datasource == "" {
		return nil, fmt.Errorf("postgres: datasource is required")
	}

	prefix := cfg.TablePrefix
	if prefix == "" {
		prefix = DefaultTablePrefix
	}

	db, err := sql.Open("pgx", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	db.SetConnMaxLifetime(ConnMaxLifetime)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetMaxOpenConns(MaxOpenConns)

	pepper := cryptoutil.DeriveID(cfg.ApplicationSecret).String()

	return &Postgres{
		db:                     db,
		goqu:                   goqu.New("postgres", db),
		pepper:                 pepper,
		tUsers:                 goqu.T(prefix + "users"),
		tProjects:              goqu.T(prefix + "projects"),
		tMemberships:           goqu.T(prefix + "memberships"),
		tProjectInviteCodes:    goqu.T(prefix + "project_invite_codes"),
		tSessionTokens:         goqu.T(prefix + "session_tokens"),
		tDeployments:           goqu.T(prefix + "deployments"),
		tConnections:           goqu.T(prefix + "connections"),
		tConnectionDeployments: goqu.T(prefix + "connection_deployments"),
		tVirtualKeys:           goqu.T(prefix + "virtual_keys"),
		tVirtualKeyDeployments: goqu.T(prefix + "virtual_key_deployments"),
	}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Ping verifies connectivity, used by the health checker's database probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// randomSalt returns a fresh per-record encryption salt.
func randomSalt() (string, error) {
	return cryptoutil.GenerateSecret("", 16)
}
