package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tasklive/internal/auth"
	"github.com/hitoshi/tasklive/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, input model.NewUser) (*model.User, error)
	Login(ctx context.Context, loginOrEmail, password string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	TokenTTL     time.Duration // トークンCookieの有効期間
}

// AuthHandler はアカウント登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。usernameにはメールアドレスも指定できる。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register はアカウントを登録する。
// POST /api/v1/auth
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	user, err := h.service.Register(r.Context(), model.NewUser{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, http.StatusCreated, "Account created successfully", user)
}

// Login は資格情報を検証し、トークンをhttpOnly Cookieに設定する。
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, http.StatusOK, "Successfully logged in", nil)
}

// Logout はトークンCookieを削除する。トークン自体はサーバー側に保存しないため失効処理はない。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, http.StatusOK, "Successfully logged out", nil)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, http.StatusOK, "User fetched successfully", user)
}
