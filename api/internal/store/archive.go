package store

import (
	"context"
	"database/sql"
	"fmt"

	"ocs-worker/api/internal/worker"
)

// Archive — прогоны целиком: итог и ответы по вопросам.
type Archive struct {
	*RunRepo
	*ResultRepo
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{RunRepo: NewRunRepo(db), ResultRepo: NewResultRepo(db)}
}

// Save пишет ответы, затем итог прогона.
func (a *Archive) Save(ctx context.Context, row RunRow, items []worker.Summary) error {
	if err := a.SaveRun(ctx, row.RunID, items); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if err := a.Upsert(ctx, row); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}
