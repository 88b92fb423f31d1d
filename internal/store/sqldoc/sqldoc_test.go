package sqldoc

import (
	"context"
	"errors"
	"testing"
	"time"

	"lumen/internal/query"
	"lumen/internal/store"
	"lumen/internal/store/storetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestCollection_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Collection[storetest.Doc] {
		c, err := NewCollection[storetest.Doc](openSQLite(t), "docs")
		require.NoError(t, err)
		require.NoError(t, c.Migrate(context.Background()))
		return c
	})
}

func TestNewCollection_RejectsBadName(t *testing.T) {
	_, err := NewCollection[storetest.Doc](nil, "docs; DROP TABLE x")
	assert.Error(t, err)
}

func TestWhereClause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pred     query.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "nothing",
			pred:    query.Nothing(),
			wantSQL: "1 = 0",
		},
		{
			name:    "match all",
			pred:    query.All(),
			wantSQL: "1 = 1",
		},
		{
			name:     "id column",
			pred:     query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "_id", Value: "p1"}}},
			wantSQL:  "(id = ?)",
			wantArgs: []any{"p1"},
		},
		{
			name: "nor of and clauses",
			pred: query.Predicate{Op: query.OpNone, Clauses: []query.Predicate{
				{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "a"}}},
				{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "b"}}},
			}},
			wantSQL:  "NOT (((body ->> 'uid' IS NOT NULL AND body ->> 'uid' = ?)) OR ((body ->> 'uid' IS NOT NULL AND body ->> 'uid' = ?)))",
			wantArgs: []any{"a", "b"},
		},
		{
			name:     "non string values render as text",
			pred:     query.Predicate{Op: query.OpAny, Terms: []query.Term{{Field: "count", Value: 3}, {Field: "flag", Value: true}}},
			wantSQL:  "((body ->> 'count' IS NOT NULL AND body ->> 'count' = ?) OR (body ->> 'flag' IS NOT NULL AND body ->> 'flag' = ?))",
			wantArgs: []any{"3", "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := whereClause(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestWhereClause_RejectsInjectedField(t *testing.T) {
	t.Parallel()

	_, _, err := whereClause(query.Predicate{Op: query.OpAll, Terms: []query.Term{{Field: "uid' OR '1'='1", Value: "x"}}})
	assert.Error(t, err)
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	assert.True(t, isDuplicate(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDuplicate(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(errors.New("UNIQUE constraint failed: docs.id")))
	assert.False(t, isDuplicate(errors.New("connection reset")))
}

func TestFind_PostgresQueryShape(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	c, err := NewCollection[storetest.Doc](db, "posts")
	require.NoError(t, err)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "created_at", "body"}).
		AddRow("p1", created, `{"_id":"p1","uid":"u1","content":"hi","tags":[],"notes":[],"created_at":{"$date":"2024-06-01T12:00:00Z"}}`)
	mock.ExpectQuery(`SELECT \* FROM "posts" WHERE .*body ->> 'uid'.*ORDER BY created_at DESC, id DESC LIMIT \$\d+ OFFSET \$\d+`).
		WithArgs("u1", 7, 14).
		WillReturnRows(rows)

	pred := query.Predicate{Op: query.OpAny, Clauses: []query.Predicate{
		{Op: query.OpAll, Terms: []query.Term{{Field: "uid", Value: "u1"}}},
	}}
	got, err := c.Find(context.Background(), pred, store.Page{SortField: "created_at", Descending: true, Skip: 14, Limit: 7})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UID)
	assert.True(t, created.Equal(got[0].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UniqueFields(t *testing.T) {
	ctx := context.Background()
	c, err := NewCollection[storetest.Doc](openSQLite(t), "docs")
	require.NoError(t, err)
	require.NoError(t, c.Migrate(ctx, "uid"))
	require.NoError(t, c.Migrate(ctx, "uid"), "migrating twice is a no-op")

	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "a", UID: "u1", CreatedAt: time.Now()}))
	err = c.Insert(ctx, &storetest.Doc{ID: "b", UID: "u1", CreatedAt: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrDuplicateKey))

	require.NoError(t, c.Insert(ctx, &storetest.Doc{ID: "c", UID: "u2", CreatedAt: time.Now()}))

	assert.Error(t, c.Migrate(ctx, "uid); DROP TABLE docs; --"))
}

func TestWhereClause_Contains(t *testing.T) {
	t.Parallel()

	sql, args, err := whereClause(query.Predicate{Op: query.OpAny, Terms: []query.Term{
		{Field: "username", Value: query.Contains("An_n%")},
	}})
	require.NoError(t, err)
	assert.Equal(t, `((body ->> 'username' IS NOT NULL AND LOWER(body ->> 'username') LIKE ? ESCAPE '\'))`, sql)
	assert.Equal(t, []any{`%an\_n\%%`}, args)
}
