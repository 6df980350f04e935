package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocs-worker/api/internal/worker"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func summaries() []worker.Summary {
	yes := true
	return []worker.Summary{
		{Question: "1+1=?", Type: "single", Finish: &yes, Selections: []worker.Selection{{Option: "2", Answer: "2"}}},
		{Question: "blank", Error: "empty question title"},
	}
}

func TestSaveRun(t *testing.T) {
	db, mock := newMock(t)
	items := summaries()

	mock.ExpectBegin()
	insert := regexp.QuoteMeta("insert into work_results")
	mock.ExpectExec(insert).
		WithArgs("run-1", 0, "1+1=?", "single", true, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).
		WithArgs("run-1", 1, "blank", "", nil, "empty question title", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, NewResultRepo(db).SaveRun(context.Background(), "run-1", items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into work_results").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := NewResultRepo(db).SaveRun(context.Background(), "run-1", summaries())
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRun(t *testing.T) {
	db, mock := newMock(t)
	items := summaries()
	a, _ := json.Marshal(items[0])
	b, _ := json.Marshal(items[1])

	mock.ExpectQuery("select result_json from work_results").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"result_json"}).AddRow(a).AddRow(b))

	got, err := NewResultRepo(db).ListRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, items, got)

	mock.ExpectQuery("select result_json").WithArgs("none").WillReturnRows(sqlmock.NewRows([]string{"result_json"}))
	_, err = NewResultRepo(db).ListRun(context.Background(), "none")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeOlderThan(t *testing.T) {
	db, mock := newMock(t)
	repo := NewResultRepo(db)

	_, err := repo.PurgeOlderThan(context.Background(), 0)
	assert.Error(t, err)

	mock.ExpectExec("delete from work_results").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := repo.PurgeOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRunRepo(db)
	row := RunRow{RunID: "run-1", Total: 10, Finished: 7, Rate: 0.7, Policy: "70", Action: "submit"}

	mock.ExpectExec("insert into work_runs").
		WithArgs("run-1", 10, 7, 0.7, "70", "submit").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Upsert(context.Background(), row))

	now := time.Now()
	mock.ExpectQuery("select run_id, created_at").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "created_at", "total", "finished", "rate", "policy", "action"}).
			AddRow("run-1", now, 10, 7, 0.7, "70", "submit"))
	got, err := repo.Find(context.Background(), "run-1")
	require.NoError(t, err)
	row.CreatedAt = now
	assert.Equal(t, row, got)

	mock.ExpectQuery("select run_id").WithArgs("x").WillReturnError(sql.ErrNoRows)
	_, err = repo.Find(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveSave(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into work_results").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("insert into work_runs").
		WithArgs("run-2", 1, 1, 1.0, "80", "submit").
		WillReturnResult(sqlmock.NewResult(1, 1))

	row := RunRow{RunID: "run-2", Total: 1, Finished: 1, Rate: 1, Policy: "80", Action: "submit"}
	require.NoError(t, NewArchive(db).Save(context.Background(), row, summaries()[:1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveSaveStopsOnResultsError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

	err := NewArchive(db).Save(context.Background(), RunRow{RunID: "r"}, summaries())
	assert.ErrorContains(t, err, "save results")
	assert.NoError(t, mock.ExpectationsWereMet())
}
