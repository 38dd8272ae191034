// Package store implements the relational system of record: tenants,
// services, environments, and endpoints, plus the read-path resolution
// query and the write-path transactional upserts.
package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// ErrRouteNotFound is returned by Resolve when no active endpoint matches.
var ErrRouteNotFound = errors.New("route not found")

// Store wraps a pooled relational handle.
type Store struct {
	db *sql.DB
}

// Open opens and configures a connection pool against dsn.
func Open(dsn string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return &Store{db: db}, nil
}

// New wraps an already-opened handle (used by tests against sqlmock).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for pool-stat sampling.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const resolveEndpointQuery = `
SELECT e.id, e.url
FROM endpoints e
JOIN environments env ON env.id = e.environment_id
JOIN services svc ON svc.id = env.service_id
JOIN tenants t ON t.id = svc.tenant_id
WHERE t.name = $1 AND svc.name = $2 AND env.name = $3 AND e.version = $4
  AND e.is_active = true
`

// Resolve runs the four-way join the read engine falls back to on a cache
// miss. Returns ErrRouteNotFound when no active endpoint matches.
func (s *Store) Resolve(ctx context.Context, key domain.Key) (domain.Route, error) {
	row := s.db.QueryRowContext(ctx, resolveEndpointQuery, key.Tenant, key.Service, key.Environment, key.Version)

	var route domain.Route
	route.Tenant, route.Service, route.Environment, route.Version = key.Tenant, key.Service, key.Environment, key.Version
	route.IsActive = true

	if err := row.Scan(&route.EndpointID, &route.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Route{}, ErrRouteNotFound
		}
		return domain.Route{}, err
	}
	return route, nil
}
