// Package task はタスクのCRUDとライブ配信の連携を提供する。
package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/tasklive/internal/model"
	"github.com/hitoshi/tasklive/internal/repository"
)

const maxTitleLength = 255

// Broadcaster はスナップショットをライブ接続へ配信するインターフェース。
type Broadcaster interface {
	Push(ctx context.Context, snapshot model.TaskSnapshot)
}

// Sanitizer はタイトル・説明からマークアップを除去するインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MutationRecorder はタスク変更の成功を記録するインターフェース。
type MutationRecorder interface {
	RecordTaskMutation(op string)
}

// Service はタスク操作を所有者スコープで実行し、成功後にスナップショットを配信する。
// すべての操作は認証済みユーザーを明示的な引数として受け取る。
type Service struct {
	tasks       repository.TaskRepository
	broadcaster Broadcaster
	sanitizer   Sanitizer
	metrics     MutationRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(tasks repository.TaskRepository, broadcaster Broadcaster, sanitizer Sanitizer, metrics MutationRecorder) *Service {
	return &Service{
		tasks:       tasks,
		broadcaster: broadcaster,
		sanitizer:   sanitizer,
		metrics:     metrics,
	}
}

// FindAll はユーザーの全タスクを返し、同じ内容をライブ接続へ配信する。
func (s *Service) FindAll(ctx context.Context, user *model.User) (model.TaskSnapshot, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	tasks, err := s.tasks.FindByOwner(ctx, user.ID)
	if err != nil {
		return nil, s.internal("failed to list tasks", user.ID, err)
	}

	snapshot := model.TaskSnapshot(tasks)
	s.broadcaster.Push(ctx, snapshot)
	return snapshot, nil
}

// FindOne はユーザーが所有する指定IDのタスクを返す。配信は行わない。
func (s *Service) FindOne(ctx context.Context, user *model.User, id int64) (*model.Task, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	task, err := s.tasks.FindByOwnerAndID(ctx, user.ID, id)
	if err != nil {
		return nil, s.internal("failed to find task", user.ID, err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return task, nil
}

// Create はタスクを作成する。所有者は常にuserとなる。
// 同じ所有者に同じタイトルのタスクがある場合はConflictエラーを返す。
func (s *Service) Create(ctx context.Context, user *model.User, input model.TaskInput) (*model.Task, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	input, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.tasks.FindByOwnerAndTitle(ctx, user.ID, input.Title)
	if err != nil {
		return nil, s.internal("failed to check task title", user.ID, err)
	}
	if existing != nil {
		return nil, model.NewTaskConflictError(input.Title)
	}

	task := &model.Task{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		OwnerID:     user.ID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewTaskConflictError(input.Title)
		}
		return nil, s.internal("failed to create task", user.ID, err)
	}

	s.afterMutation(ctx, "create", user.ID)
	return task, nil
}

// Update はユーザーが所有するタスクのタイトル・説明・優先度を置き換える。
// 対象が無い場合はNotFound、他の自タスクと同じタイトルへの変更はConflictエラーを返す。
func (s *Service) Update(ctx context.Context, user *model.User, id int64, input model.TaskInput) (*model.Task, error) {
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	input, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	current, err := s.tasks.FindByOwnerAndID(ctx, user.ID, id)
	if err != nil {
		return nil, s.internal("failed to find task", user.ID, err)
	}
	if current == nil {
		return nil, model.NewTaskNotFoundError(id)
	}

	if input.Title != current.Title {
		existing, err := s.tasks.FindByOwnerAndTitle(ctx, user.ID, input.Title)
		if err != nil {
			return nil, s.internal("failed to check task title", user.ID, err)
		}
		if existing != nil && existing.ID != id {
			return nil, model.NewTaskConflictError(input.Title)
		}
	}

	task := &model.Task{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		OwnerID:     user.ID,
	}
	found, err := s.tasks.Update(ctx, task)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewTaskConflictError(input.Title)
		}
		return nil, s.internal("failed to update task", user.ID, err)
	}
	// 取得後に削除された場合
	if !found {
		return nil, model.NewTaskNotFoundError(id)
	}

	s.afterMutation(ctx, "update", user.ID)
	return task, nil
}

// Delete はユーザーが所有するタスクを削除する。対象が無い場合はNotFoundエラーを返す。
func (s *Service) Delete(ctx context.Context, user *model.User, id int64) error {
	if user == nil {
		return model.NewUnauthenticatedError()
	}

	deleted, err := s.tasks.Delete(ctx, user.ID, id)
	if err != nil {
		return s.internal("failed to delete task", user.ID, err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(id)
	}

	s.afterMutation(ctx, "delete", user.ID)
	return nil
}

// afterMutation は所有者のスナップショットを再計算して配信する。
// 変更自体は成功しているため、再計算の失敗は呼び出し元へ返さない。
// 確定済みの変更は、リクエストが中断されても配信まで進める。
func (s *Service) afterMutation(ctx context.Context, op string, ownerID int64) {
	ctx = context.WithoutCancel(ctx)
	if s.metrics != nil {
		s.metrics.RecordTaskMutation(op)
	}

	tasks, err := s.tasks.FindByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("failed to recompute snapshot",
			slog.String("op", op),
			slog.Int64("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.broadcaster.Push(ctx, tasks)
}

// normalize は入力をサニタイズし、必須項目と優先度を検証する。
func (s *Service) normalize(input model.TaskInput) (model.TaskInput, error) {
	input.Title = s.sanitizer.Sanitize(input.Title)
	if input.Title == "" {
		return input, model.NewInvalidRequestError("title is required")
	}
	if len([]rune(input.Title)) > maxTitleLength {
		return input, model.NewInvalidRequestError("title must be at most 255 characters")
	}

	if input.Description != nil {
		desc := s.sanitizer.Sanitize(*input.Description)
		if desc == "" {
			input.Description = nil
		} else {
			input.Description = &desc
		}
	}

	priority, ok := model.ParsePriority(string(input.Priority))
	if !ok {
		return input, model.NewInvalidRequestError("Invalid task priority: high | medium | low")
	}
	input.Priority = priority

	return input, nil
}

func (s *Service) internal(msg string, ownerID int64, err error) error {
	slog.Error(msg,
		slog.Int64("owner_id", ownerID),
		slog.String("error", err.Error()),
	)
	return model.NewInternalError()
}
