package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

// ErrEmptyURL is returned by CreateRoute when the supplied URL is blank.
var ErrEmptyURL = errors.New("endpoint url must not be empty")

// ErrEnvironmentNotFound is returned by Activate/Deactivate when the
// tenant/service/environment triple does not resolve to a known
// environment row.
var ErrEnvironmentNotFound = errors.New("environment not found")

func getOrCreateTenant(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO tenants (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT id FROM tenants WHERE name = $1`, name).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("get or create tenant %q: %w", name, err)
	}
	return id, nil
}

func getOrCreateService(ctx context.Context, tx *sql.Tx, tenantID int64, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO services (tenant_id, name) VALUES ($1, $2)
		ON CONFLICT (tenant_id, name) DO NOTHING
		RETURNING id
	`, tenantID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT id FROM services WHERE tenant_id = $1 AND name = $2`, tenantID, name).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("get or create service %q: %w", name, err)
	}
	return id, nil
}

func getOrCreateEnvironment(ctx context.Context, tx *sql.Tx, serviceID int64, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO environments (service_id, name) VALUES ($1, $2)
		ON CONFLICT (service_id, name) DO NOTHING
		RETURNING id
	`, serviceID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT id FROM environments WHERE service_id = $1 AND name = $2`, serviceID, name).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("get or create environment %q: %w", name, err)
	}
	return id, nil
}

// CreateRoute idempotently ensures the tenant/service/environment chain
// exists, then upserts the endpoint for (environment, version). A second
// call with the same key and a new URL updates the existing endpoint in
// place rather than creating a duplicate, matching the unique constraint
// on (environment_id, version).
func (s *Store) CreateRoute(ctx context.Context, key domain.Key, url string) (domain.Route, error) {
	if strings.TrimSpace(url) == "" {
		return domain.Route{}, ErrEmptyURL
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Route{}, err
	}
	defer tx.Rollback()

	tenantID, err := getOrCreateTenant(ctx, tx, key.Tenant)
	if err != nil {
		return domain.Route{}, err
	}
	serviceID, err := getOrCreateService(ctx, tx, tenantID, key.Service)
	if err != nil {
		return domain.Route{}, err
	}
	environmentID, err := getOrCreateEnvironment(ctx, tx, serviceID, key.Environment)
	if err != nil {
		return domain.Route{}, err
	}

	var route domain.Route
	err = tx.QueryRowContext(ctx, `
		INSERT INTO endpoints (environment_id, version, url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, true, now(), now())
		ON CONFLICT (environment_id, version)
		DO UPDATE SET url = EXCLUDED.url, is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING id, url, is_active
	`, environmentID, key.Version, url).Scan(&route.EndpointID, &route.URL, &route.IsActive)
	if err != nil {
		return domain.Route{}, fmt.Errorf("upsert endpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Route{}, err
	}

	route.Tenant, route.Service, route.Environment, route.Version = key.Tenant, key.Service, key.Environment, key.Version
	return route, nil
}

func (s *Store) resolveEnvironmentID(ctx context.Context, key domain.Key) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT env.id
		FROM environments env
		JOIN services svc ON svc.id = env.service_id
		JOIN tenants t ON t.id = svc.tenant_id
		WHERE t.name = $1 AND svc.name = $2 AND env.name = $3
	`, key.Tenant, key.Service, key.Environment).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEnvironmentNotFound
	}
	return id, err
}

func (s *Store) setActive(ctx context.Context, key domain.Key, active bool) (domain.Route, error) {
	environmentID, err := s.resolveEnvironmentID(ctx, key)
	if err != nil {
		return domain.Route{}, err
	}

	var route domain.Route
	err = s.db.QueryRowContext(ctx, `
		UPDATE endpoints
		SET is_active = $3, updated_at = now()
		WHERE environment_id = $1 AND version = $2
		RETURNING id, url
	`, environmentID, key.Version, active).Scan(&route.EndpointID, &route.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, ErrRouteNotFound
	}
	if err != nil {
		return domain.Route{}, err
	}

	route.Tenant, route.Service, route.Environment, route.Version = key.Tenant, key.Service, key.Environment, key.Version
	route.IsActive = active
	return route, nil
}

// Activate marks the endpoint for key active, returning ErrEnvironmentNotFound
// or ErrRouteNotFound if the coordinate does not resolve to an endpoint row.
func (s *Store) Activate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return s.setActive(ctx, key, true)
}

// Deactivate marks the endpoint for key inactive.
func (s *Store) Deactivate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return s.setActive(ctx, key, false)
}
