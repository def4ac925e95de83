// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/tasklive/internal/auth"
	"github.com/hitoshi/tasklive/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// Authenticator はトークンから認証済みユーザーを解決するインターフェース。
// auth.Gateが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*model.User, error)
}

// NewSessionMiddleware はCookieのトークンを検証するミドルウェアを返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
// 未認証リクエストには失敗理由に関わらず同一の401レスポンスを返す。
func NewSessionMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), auth.TokenFromRequest(r))
			if err != nil || user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			rememberUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
