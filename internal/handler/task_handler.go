package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tasklive/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
// task.Serviceが実装する。
type TaskServiceInterface interface {
	FindAll(ctx context.Context, user *model.User) (model.TaskSnapshot, error)
	FindOne(ctx context.Context, user *model.User, id int64) (*model.Task, error)
	Create(ctx context.Context, user *model.User, input model.TaskInput) (*model.Task, error)
	Update(ctx context.Context, user *model.User, id int64, input model.TaskInput) (*model.Task, error)
	Delete(ctx context.Context, user *model.User, id int64) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

// taskRequest はタスク作成・更新リクエストのボディ。
type taskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
}

// toInput はリクエストをサービス入力に変換する。優先度の検証はサービス層で行う。
func (req taskRequest) toInput() model.TaskInput {
	return model.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
	}
}

// ListTasks は認証済みユーザーのタスク一覧を返す。
// GET /api/v1/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.FindAll(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = model.TaskSnapshot{}
	}

	writeJSON(w, http.StatusOK, http.StatusOK, "Tasks fetched successfully", tasks)
}

// CreateTask はタスクを作成する。
// POST /api/v1/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	task, err := h.service.Create(r.Context(), user, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, http.StatusCreated, "Task created successfully", task)
}

// GetTask はタスクを1件返す。
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, apiErr := taskIDParam(r)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	task, err := h.service.FindOne(r.Context(), user, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, http.StatusOK, "Task fetched successfully", task)
}

// UpdateTask はタスクを更新する。
// PATCH /api/v1/tasks/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, apiErr := taskIDParam(r)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	var req taskRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	task, err := h.service.Update(r.Context(), user, id, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, http.StatusOK, "Task updated successfully", task)
}

// DeleteTask はタスクを削除する。
// ボディのstatusCodeは204だが、メッセージを返すためHTTPステータスは200とする。
// DELETE /api/v1/tasks/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	id, apiErr := taskIDParam(r)
	if apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, http.StatusNoContent, "Task deleted successfully", nil)
}

// taskIDParam はURLパスのタスクIDを正の整数として解析する。
func taskIDParam(r *http.Request) (int64, *model.APIError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidRequestError("Validation failed (numeric string is expected)")
	}
	return id, nil
}
