package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500レスポンスを返すミドルウェアを生成する。
// セッションミドルウェアがユーザーを解決済みであれば、ログにuser_idを含める。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			holder := &userHolder{}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// 切断時にnet/httpが使う番兵はそのまま再送出する
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				if holder.user != nil {
					attrs = append(attrs, slog.Int64("user_id", holder.user.ID))
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				slog.Error("panic recovered", attrs...)

				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userHolderKey, holder)))
		})
	}
}
