package store

import (
	"context"
	"database/sql"
	"time"
)

// RunRow — итог прогона: доля отвеченных и принятое решение о сдаче.
type RunRow struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
	Finished  int       `json:"finished"`
	Rate      float64   `json:"rate"`
	Policy    string    `json:"policy"`
	Action    string    `json:"action"`
}

type RunRepo struct{ DB *sql.DB }

func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{DB: db} }

// Upsert сохраняет/обновляет итог прогона. PK: run_id.
func (r *RunRepo) Upsert(ctx context.Context, row RunRow) error {
	const q = `
insert into work_runs (run_id, total, finished, rate, policy, action)
values ($1,$2,$3,$4,$5,$6)
on conflict (run_id)
do update set total=excluded.total, finished=excluded.finished, rate=excluded.rate,
              policy=excluded.policy, action=excluded.action`
	_, err := r.DB.ExecContext(ctx, q, row.RunID, row.Total, row.Finished, row.Rate, row.Policy, row.Action)
	return err
}

// Find возвращает итог прогона или ErrNotFound.
func (r *RunRepo) Find(ctx context.Context, runID string) (RunRow, error) {
	const q = `select run_id, created_at, total, finished, rate, policy, action
	           from work_runs where run_id=$1`
	var row RunRow
	err := r.DB.QueryRowContext(ctx, q, runID).
		Scan(&row.RunID, &row.CreatedAt, &row.Total, &row.Finished, &row.Rate, &row.Policy, &row.Action)
	return row, err
}
