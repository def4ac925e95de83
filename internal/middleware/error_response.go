package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tasklive/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じstatusCode/messageに加え、原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// StatusForKind はエラー分類に対応するHTTPステータスコードを返す。
func StatusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnauthenticated:
		return http.StatusUnauthorized
	case model.KindConflict:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		StatusCode: statusCode,
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Category:   apiErr.Category,
		Action:     apiErr.Action,
	})
}

// WriteAPIError はAPIErrorの分類からステータスコードを決めて書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForKind(apiErr.Kind), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
