package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/laneview/pkg/snapshot"
)

func TestSQLStore_Rebind(t *testing.T) {
	pg := NewSQLStore(nil, DriverPostgres)
	assert.Equal(t, "INSERT INTO t VALUES ($1, $2, $3)", pg.rebind("INSERT INTO t VALUES (?, ?, ?)"))

	lite := NewSQLStore(nil, DriverSQLite)
	assert.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))
}

func TestSQLStore_PostgresSaveAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, DriverPostgres)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO detections \(timestamp_ms, date, objects_total, objects_by_lane, avg_speed_by_lane\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`)
	prep.ExpectExec().WithArgs(int64(1000), "d", `{"car":1}`, `{}`, `{}`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = store.SaveAll(context.Background(), []snapshot.Record{
		{TimestampMs: 1000, Date: "d", ObjectsTotal: `{"car":1}`, ObjectsByLane: `{}`, AvgSpeedByLane: `{}`},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SaveAllRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, DriverSQLite)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO detections`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.SaveAll(context.Background(), []snapshot.Record{{TimestampMs: 1}, {TimestampMs: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db, DriverPostgres)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, timestamp_ms, date, objects_total, objects_by_lane, avg_speed_by_lane FROM detections ORDER BY id`).
		WillReturnError(errors.New("connection reset"))
	_, err = store.ListAll(ctx)
	assert.ErrorContains(t, err, "connection reset")

	mock.ExpectQuery(`ORDER BY timestamp_ms DESC, id DESC LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp_ms", "date", "objects_total", "objects_by_lane", "avg_speed_by_lane"}).
			AddRow(7, 900, "d", "{}", "{}", "{}"))
	latest, err := store.Latest(ctx, 3)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, int64(7), latest[0].ID)

	mock.ExpectQuery(`ORDER BY timestamp_ms ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	_, err = store.ListOrdered(ctx, snapshot.Ascending)
	assert.ErrorContains(t, err, "failed to scan detection")

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM detections`).WillReturnError(errors.New("timeout"))
	_, err = store.Count(ctx)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MigratePostgresDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS detections \(\s+id BIGSERIAL PRIMARY KEY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_detections_timestamp_ms`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewSQLStore(db, DriverPostgres).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, NewSQLStore(db, DriverPostgres).HealthCheck(context.Background()))
}

func TestOpenSQLite_File(t *testing.T) {
	path := t.TempDir() + "/laneview.db"
	ctx := context.Background()

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.SaveAll(ctx, sampleRecords()))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = OpenSQLite(ctx, "")
	assert.Error(t, err)
}
