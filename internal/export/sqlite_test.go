package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/sampling"
)

func toyTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.New("toy",
		dataset.StringColumn("patient_id", dataset.RoleID, []string{"P0001", "P0002", "P0003"}),
		dataset.IntColumn("age", dataset.RoleFeature, []int{40, 55, 70}),
		dataset.FloatColumn("hba1c", dataset.RoleFeature, 1, []float64{5.4, 7.9, 6.1}),
		dataset.BoolColumn("diabetes", dataset.RoleFeature, []bool{false, true, false}),
	)
	require.NoError(t, err)
	return table
}

func TestSQLiteRoundTrip(t *testing.T) {
	table := toyTable(t)
	// every row of hba1c goes missing
	_, err := table.InjectMissing(sampling.New(1), "hba1c", 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "out.db")
	run := Run{ID: "run-1", Seed: 42, At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, SQLite(context.Background(), path, run, table))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "toy"`).Scan(&count))
	assert.Equal(t, 3, count)

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "toy" WHERE hba1c IS NULL`).Scan(&nulls))
	assert.Equal(t, 3, nulls)

	var id string
	var age int
	var diabetes int
	require.NoError(t, db.QueryRow(`SELECT patient_id, age, diabetes FROM "toy" WHERE age > 50 ORDER BY age LIMIT 1`).
		Scan(&id, &age, &diabetes))
	assert.Equal(t, "P0002", id)
	assert.Equal(t, 55, age)
	assert.Equal(t, 1, diabetes)

	var runID, exportedAt string
	var seed int64
	var rows int
	require.NoError(t, db.QueryRow(`SELECT run_id, seed, row_count, exported_at FROM `+RunsTable+` WHERE table_name = 'toy'`).
		Scan(&runID, &seed, &rows, &exportedAt))
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, int64(42), seed)
	assert.Equal(t, 3, rows)
	assert.Equal(t, "2024-01-02T03:04:05Z", exportedAt)
}

func TestSQLiteReplacesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	table := toyTable(t)
	require.NoError(t, SQLite(context.Background(), path, Run{ID: "a"}, table))
	preview, err := table.Preview("toy", 1)
	require.NoError(t, err)
	require.NoError(t, SQLite(context.Background(), path, Run{ID: "b"}, preview))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "toy"`).Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+RunsTable).Scan(&count))
	assert.Equal(t, 2, count, "run log accumulates")
}

func TestSQLiteGeneratedTables(t *testing.T) {
	gen, err := generator.NewBoneLossGenerator(generator.DefaultBoneLossConfig())
	require.NoError(t, err)
	out, err := gen.Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "implants.db")
	require.NoError(t, SQLite(context.Background(), path, Run{ID: "gen", Seed: out.Seed}, out.Tables...))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "implant_bone_loss" WHERE hba1c IS NULL`).Scan(&nulls))
	assert.Equal(t, out.Missing[generator.ColHbA1c], nulls)

	var preview int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "implant_bone_loss_toy"`).Scan(&preview))
	assert.Equal(t, 50, preview)
}

func TestSQLiteRequiresPath(t *testing.T) {
	assert.Error(t, SQLite(context.Background(), "", Run{}, toyTable(t)))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"plain"`, quoteIdent("plain"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
