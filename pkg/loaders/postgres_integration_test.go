package loaders

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/pkg/core"
)

// postgresURL returns the database used by the integration tests, skipping
// the test when none is configured.
func postgresURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("VETSYNTH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("VETSYNTH_TEST_POSTGRES_URL is not set")
	}
	return url
}

func TestPostgresLoadReplacesRows(t *testing.T) {
	url := postgresURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := DefaultFactory.Create(core.LoaderConfig{Driver: "postgres", DSN: url})
	require.NoError(t, err)
	defer l.Close()

	first := weightRelation(core.StageClean, 5)
	defer first.Release()
	second := weightRelation(core.StageClean, 3)
	defer second.Release()
	require.NoError(t, l.Load(ctx, "vetsynth_it", first))
	require.NoError(t, l.Load(ctx, "vetsynth_it", second))

	conn, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	defer conn.Close(ctx)

	var n int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM vetsynth_it.animal_weight`).Scan(&n))
	assert.Equal(t, 3, n)

	var day time.Time
	require.NoError(t, conn.QueryRow(ctx, `SELECT appt_date FROM vetsynth_it.animal_weight WHERE id_weight = 1`).Scan(&day))
	assert.Equal(t, "2020-02-29", day.Format(time.DateOnly))

	_, err = conn.Exec(ctx, `DROP SCHEMA vetsynth_it CASCADE`)
	require.NoError(t, err)
}
