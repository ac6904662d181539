package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workhub/internal/types"
)

// --- DBTX Mock ---

// mockDBTX implements DBTX for repository tests.
type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if rows := args.Get(0); rows != nil {
		return rows.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// mockRow implements pgx.Row with fixed scan values.
type mockRow struct {
	values []any
	err    error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *int:
			*v = r.values[i].(int)
		case *int64:
			*v = r.values[i].(int64)
		}
	}
	return nil
}

// --- UsageRepo Tests ---

func TestUsageRepo_SumActive_BoundsPeriodWindow(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepo(db)

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			// Periodic rows count only when their window contains now: a row
			// dated in the future or already ended must not contribute.
			assert.Contains(t, sql, "period_starts_at <= $4")
			assert.Contains(t, sql, "period_ends_at > $4")
			assert.Contains(t, sql, "period_type = 'lifetime'")
		}).
		Return(&mockRow{values: []any{17}})

	total, err := repo.SumActive(context.Background(), 42, nil, "api_calls", now)
	require.NoError(t, err)
	assert.Equal(t, 17, total)
	db.AssertExpectations(t)
}

func TestUsageRepo_SumActiveAllWorkspaces_BoundsPeriodWindow(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepo(db)

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.Contains(t, sql, "workspace_id IS NOT NULL")
			assert.Contains(t, sql, "period_starts_at <= $3")
			assert.Contains(t, sql, "period_ends_at > $3")
		}).
		Return(&mockRow{values: []any{9}})

	total, err := repo.SumActiveAllWorkspaces(context.Background(), 42, "api_calls", now)
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	db.AssertExpectations(t)
}

func TestUsageRepo_Add_FloorsAtZero(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUsageRepo(db)

	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sql := args.Get(1).(string)
			assert.Contains(t, sql, "GREATEST(0")
			assert.Contains(t, sql, "ON CONFLICT")
		}).
		Return(&mockRow{values: []any{0}})

	newUsage, err := repo.Add(context.Background(), 42, nil, "api_calls", -5, types.PeriodPeriodic, periodStart, &periodEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, newUsage)
	db.AssertExpectations(t)
}
