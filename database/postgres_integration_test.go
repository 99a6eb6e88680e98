//go:build integration

package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Runs against a throwaway postgres container: go test -tags integration ./database
func TestPostgresIntrospection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "sqlcli",
				"POSTGRES_PASSWORD": "sqlcli",
				"POSTGRES_DB":       "sqlcli",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := Open(fmt.Sprintf("postgres://sqlcli:sqlcli@%s:%s/sqlcli?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	defer db.Close()

	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "CREATE TABLE page (page_id BIGINT PRIMARY KEY, page_latest BIGINT, page_title TEXT NOT NULL)")
		return err
	})
	require.NoError(t, err)

	require.NoError(t, db.BulkQuery(ctx, "INSERT INTO page (page_id, page_latest, page_title) VALUES ($1, $2, $3)", [][]interface{}{
		{1, 10, "Main_Page"},
		{2, 20, "Go_(programming_language)"},
	}))

	collection, err := db.Execute(ctx, "SELECT count(*) FROM page")
	require.NoError(t, err)
	count, err := collection.Scalar(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	schemata, err := db.Schemata(ctx)
	require.NoError(t, err)
	assert.Contains(t, schemata, "public")
	assert.NotContains(t, schemata, "information_schema")

	tables, err := db.Tables(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"page"}, tables)

	columns, err := db.Columns(ctx, "public", "page")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, ColumnInfo{Name: "page_id", Type: "bigint", Nullable: false, PrimaryKey: true}, columns[0])
	assert.True(t, columns[1].Nullable)
	assert.Equal(t, "text", columns[2].Type)
	assert.False(t, columns[2].Nullable)
}
