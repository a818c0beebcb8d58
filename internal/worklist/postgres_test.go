package worklist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cardio-insights-server/internal/database"
	"github.com/cardio-insights-server/internal/domain"
	"github.com/cardio-insights-server/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:     host,
		Port:     port.Int(),
		Database: "testdb",
		Username: "testuser",
		Password: "testpass",
		MaxConns: 5,
		SSLMode:  "disable",
	}

	runner, err := database.NewEmbeddedMigrationRunner(config.URL(), migrations.FS, testLogger())
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, testLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestPostgresSource_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	src := NewPostgresSource(db.Pool, testLogger())
	demo := DemoPatients()
	require.NoError(t, src.Seed(ctx, demo))

	patients, err := src.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, len(demo))

	for i := 1; i < len(patients); i++ {
		assert.False(t, patients[i].LastEncounter.After(patients[i-1].LastEncounter), "ordered by last encounter")
	}

	for _, filter := range domain.AllWorklistFilters {
		fromDB, err := Apply(filter, patients)
		require.NoError(t, err)
		fromDemo, err := Apply(filter, demo)
		require.NoError(t, err)
		assert.Equal(t, mrns(fromDemo), mrns(fromDB), fmt.Sprintf("filter %s", filter))
	}

	got, err := src.GetPatient(ctx, demo[0].ID)
	require.NoError(t, err)
	assert.Equal(t, demo[0].MRN, got.MRN)
	assert.Equal(t, demo[0].GDMT, got.GDMT)
	assert.InDelta(t, demo[0].Ferritin, got.Ferritin, 0.001)
	assert.Equal(t, domain.ServiceLineHeartFailure, got.ServiceLine)
}

func TestPostgresSource_GetPatientNotFound(t *testing.T) {
	db := setupTestDB(t)
	src := NewPostgresSource(db.Pool, testLogger())

	_, err := src.GetPatient(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = src.GetPatient(context.Background(), "7f1d2a86-8e0c-4a55-9ad2-3c7f4b0e2b11")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresSource_UpsertUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	src := NewPostgresSource(db.Pool, testLogger())

	p := DemoPatients()[0]
	require.NoError(t, src.UpsertPatient(ctx, p))

	p.CRTReferral = true
	require.NoError(t, src.UpsertPatient(ctx, p))

	got, err := src.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.CRTReferral)
}
