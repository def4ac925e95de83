package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tasklive/internal/model"
)

// TokenCookieName はトークンを運ぶCookie名。
const TokenCookieName = "jwt"

// UserFinder はトークンのsubjectからユーザーを解決するインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// FailureRecorder は認証拒否を記録するインターフェース。
type FailureRecorder interface {
	RecordAuthFailure()
}

// Gate はリクエストまたはライブ接続ごとの認証を行う。
// サーバー側にセッションを持たず、DBへの書き込みやトークン更新も行わない。
type Gate struct {
	codec   *TokenCodec
	users   UserFinder
	metrics FailureRecorder
}

// NewGate はGateを生成する。metricsはnilでもよい。
func NewGate(codec *TokenCodec, users UserFinder, metrics FailureRecorder) *Gate {
	return &Gate{
		codec:   codec,
		users:   users,
		metrics: metrics,
	}
}

// Authenticate はトークンを検証し、対応するユーザーを返す。
// トークン欠如・検証失敗・ユーザー不在・検索エラーはすべて同一のUnauthenticatedエラーになる。
func (g *Gate) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, g.reject("no_token")
	}

	userID, err := g.codec.Verify(raw)
	if err != nil {
		return nil, g.reject("invalid_token")
	}

	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		// 運用者向けには原因を残すが、呼び出し元には区別を見せない
		slog.Error("failed to resolve token subject",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, g.reject("lookup_error")
	}
	if user == nil {
		return nil, g.reject("unknown_subject")
	}

	return user, nil
}

func (g *Gate) reject(reason string) error {
	if g.metrics != nil {
		g.metrics.RecordAuthFailure()
	}
	slog.Debug("authentication rejected", slog.String("reason", reason))
	return model.NewUnauthenticatedError()
}

// TokenFromRequest はリクエストのCookieからトークンを取り出す。無い場合は空文字列を返す。
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
