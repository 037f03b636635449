package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// markTaskProcessed records the task inside tx and reports whether it was new
func markTaskProcessed(ctx context.Context, tx *sqlx.Tx, taskID, taskType string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_tasks (task_id, task_type) VALUES ($1, $2) ON CONFLICT (task_id) DO NOTHING",
		taskID, taskType)
	if err != nil {
		return false, fmt.Errorf("failed to mark task processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
