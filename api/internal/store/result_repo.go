package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ocs-worker/api/internal/worker"
)

var ErrNotFound = sql.ErrNoRows

type ResultRepo struct{ DB *sql.DB }

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{DB: db} }

// SaveRun записывает результаты прогона одной транзакцией.
// Повторное сохранение того же (run_id, idx) перезаписывает строку.
func (r *ResultRepo) SaveRun(ctx context.Context, runID string, items []worker.Summary) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
insert into work_results (run_id, idx, question, qtype, finish, error, result_json)
values ($1,$2,$3,$4,$5,$6,$7)
on conflict (run_id, idx) do update
set question = excluded.question,
    qtype = excluded.qtype,
    finish = excluded.finish,
    error = excluded.error,
    result_json = excluded.result_json`
	for i, s := range items {
		js, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal item %d: %w", i, err)
		}
		var finish sql.NullBool
		if s.Finish != nil {
			finish = sql.NullBool{Bool: *s.Finish, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q, runID, i, s.Question, s.Type, finish, s.Error, js); err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListRun возвращает результаты прогона в исходном порядке.
func (r *ResultRepo) ListRun(ctx context.Context, runID string) ([]worker.Summary, error) {
	const q = `select result_json from work_results where run_id = $1 order by idx`
	rows, err := r.DB.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []worker.Summary
	for rows.Next() {
		var js []byte
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var s worker.Summary
		if err := json.Unmarshal(js, &s); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// PurgeOlderThan удаляет старые результаты, чтобы не раздувать БД.
func (r *ResultRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from work_results where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
