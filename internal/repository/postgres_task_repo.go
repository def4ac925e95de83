package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/tasklive/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, title, description, priority, user_id, created_at, updated_at`

// FindByOwner は所有者の全タスクをID昇順で返す。
func (r *PostgresTaskRepo) FindByOwner(ctx context.Context, ownerID int64) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// FindByOwnerAndID は所有者スコープでタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByOwnerAndID(ctx context.Context, ownerID, id int64) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND id = $2`,
		ownerID, id,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by ID: %w", err)
	}
	return task, nil
}

// FindByOwnerAndTitle は所有者スコープでタイトルが一致するタスクを取得する。
func (r *PostgresTaskRepo) FindByOwnerAndTitle(ctx context.Context, ownerID int64, title string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND title = $2`,
		ownerID, title,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task by title: %w", err)
	}
	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, description, priority, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		task.Title, nullString(task.Description), string(task.Priority), task.OwnerID,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクのタイトル・説明・優先度を更新する。
// WHERE句にuser_idを含めるため、他ユーザーのタスクは更新されない。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, priority = $3, updated_at = now()
		 WHERE id = $4 AND user_id = $5
		 RETURNING `+taskColumns,
		task.Title, nullString(task.Description), string(task.Priority), task.ID, task.OwnerID,
	)
	updated, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	*task = *updated
	return true, nil
}

// Delete は所有者スコープでタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, ownerID, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行分のタスクを読み込む。
func scanTask(s rowScanner) (*model.Task, error) {
	var (
		task        model.Task
		description sql.NullString
		priority    string
	)
	if err := s.Scan(
		&task.ID, &task.Title, &description, &priority,
		&task.OwnerID, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		d := description.String
		task.Description = &d
	}
	task.Priority = model.Priority(priority)
	return &task, nil
}

// nullString は*stringをsql.NullStringに変換する。
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
