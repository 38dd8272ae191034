package store

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
)

var sqlErrNoRows = sql.ErrNoRows

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestResolveReturnsRouteOnHit(t *testing.T) {
	s, mock := newMockStore(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	rows := sqlmock.NewRows([]string{"id", "url"}).AddRow(int64(7), "https://billing.internal/v1")
	mock.ExpectQuery("SELECT e.id, e.url").
		WithArgs(key.Tenant, key.Service, key.Environment, key.Version).
		WillReturnRows(rows)

	route, err := s.Resolve(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, int64(7), route.EndpointID)
	require.Equal(t, "https://billing.internal/v1", route.URL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReturnsNotFoundOnNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v99"}

	mock.ExpectQuery("SELECT e.id, e.url").
		WithArgs(key.Tenant, key.Service, key.Environment, key.Version).
		WillReturnError(sqlErrNoRows)

	_, err := s.Resolve(context.Background(), key)
	require.ErrorIs(t, err, ErrRouteNotFound)
}

func TestCreateRouteRejectsEmptyURL(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.CreateRoute(context.Background(), domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}, "")
	require.ErrorIs(t, err, ErrEmptyURL)
}

func TestCreateRouteUpsertsThroughChain(t *testing.T) {
	s, mock := newMockStore(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO tenants").WithArgs(key.Tenant).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO services").WithArgs(int64(1), key.Service).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectQuery("INSERT INTO environments").WithArgs(int64(2), key.Environment).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO endpoints").
		WithArgs(int64(3), key.Version, "https://billing.internal/v1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "is_active"}).
			AddRow(int64(9), "https://billing.internal/v1", true))
	mock.ExpectCommit()

	route, err := s.CreateRoute(context.Background(), key, "https://billing.internal/v1")
	require.NoError(t, err)
	require.Equal(t, int64(9), route.EndpointID)
	require.True(t, route.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateNotFoundWhenEnvironmentMissing(t *testing.T) {
	s, mock := newMockStore(t)
	key := domain.Key{Tenant: "acme", Service: "billing", Environment: "staging", Version: "v1"}

	mock.ExpectQuery("SELECT env.id").WithArgs(key.Tenant, key.Service, key.Environment).
		WillReturnError(sqlErrNoRows)

	_, err := s.Deactivate(context.Background(), key)
	require.ErrorIs(t, err, ErrEnvironmentNotFound)
}
