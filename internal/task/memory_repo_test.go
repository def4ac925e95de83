package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/tasklive/internal/model"
	"github.com/hitoshi/tasklive/internal/repository"
)

// --- モック ---

// memoryTaskRepo はtasksテーブルの一意制約（所有者ごとのタイトル）を再現するインメモリ実装。
type memoryTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]model.Task

	// 以下が設定されている場合は対応する操作でエラーを返す
	findByOwnerErr error
	createErr      error
}

var _ repository.TaskRepository = (*memoryTaskRepo)(nil)

func newMemoryTaskRepo() *memoryTaskRepo {
	return &memoryTaskRepo{nextID: 1, tasks: make(map[int64]model.Task)}
}

func (r *memoryTaskRepo) FindByOwner(_ context.Context, ownerID int64) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findByOwnerErr != nil {
		return nil, r.findByOwnerErr
	}
	out := []model.Task{}
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryTaskRepo) FindByOwnerAndID(_ context.Context, ownerID, id int64) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	return &t, nil
}

func (r *memoryTaskRepo) FindByOwnerAndTitle(_ context.Context, ownerID int64, title string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Title == title {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryTaskRepo) Create(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if r.titleTaken(task.OwnerID, task.Title, 0) {
		return repository.ErrDuplicate
	}
	task.ID = r.nextID
	r.nextID++
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = *task
	return nil
}

func (r *memoryTaskRepo) Update(_ context.Context, task *model.Task) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tasks[task.ID]
	if !ok || current.OwnerID != task.OwnerID {
		return false, nil
	}
	if r.titleTaken(task.OwnerID, task.Title, task.ID) {
		return false, repository.ErrDuplicate
	}
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = *task
	return true, nil
}

func (r *memoryTaskRepo) Delete(_ context.Context, ownerID, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

func (r *memoryTaskRepo) titleTaken(ownerID int64, title string, exceptID int64) bool {
	for _, t := range r.tasks {
		if t.OwnerID == ownerID && t.Title == title && t.ID != exceptID {
			return true
		}
	}
	return false
}

// recordingBroadcaster はPushされたスナップショットを記録する。
type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes []model.TaskSnapshot
}

func (b *recordingBroadcaster) Push(_ context.Context, snapshot model.TaskSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, snapshot)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pushes)
}

func (b *recordingBroadcaster) last() model.TaskSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pushes) == 0 {
		return nil
	}
	return b.pushes[len(b.pushes)-1]
}

type noopSanitizer struct{}

func (noopSanitizer) Sanitize(raw string) string { return raw }

type mockMutationRecorder struct {
	ops []string
}

func (m *mockMutationRecorder) RecordTaskMutation(op string) {
	m.ops = append(m.ops, op)
}
