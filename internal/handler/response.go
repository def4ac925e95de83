// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tasklive/internal/middleware"
	"github.com/hitoshi/tasklive/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// envelope は成功レスポンスの共通フォーマット。
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// writeJSON はenvelopeをJSONで書き込む。
// bodyStatusはボディのstatusCodeに入る値で、HTTPステータスと異なる場合がある（削除時の204など）。
func writeJSON(w http.ResponseWriter, httpStatus, bodyStatus int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(envelope{
		StatusCode: bodyStatus,
		Message:    message,
		Data:       data,
	}); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーをKindに応じたHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 失敗時はINVALID_REQUESTエラーを返す。
func decodeJSONBody(r *http.Request, dst any) *model.APIError {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidRequestError("Request body must be valid JSON")
	}
	return nil
}

// requireUser はセッションミドルウェアが注入したユーザーを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return nil, false
	}
	return user, true
}
