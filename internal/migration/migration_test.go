package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/posreport/pkg/db"
	"github.com/smallbiznis/posreport/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn, db.TypeSQLite))

	for _, table := range []string{
		"users", "user_sessions", "branches", "stores", "terminal_keys",
		"pos_headers", "pos_items", "pos_payments", "pos_discounts",
		"categories", "products", "documents",
		"job_runs", "bir_daily_summaries", "daily_sales_reports",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	require.NoError(t, Run(conn, db.TypeSQLite), "second run is a no-op")
}

func TestRunRequiresHandle(t *testing.T) {
	assert.Error(t, Run(nil, db.TypeSQLite))
	assert.Error(t, RunMigrations(nil))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(embeddedMigrations, down)
		assert.NoError(t, err, "missing %s", down)
	}
}
