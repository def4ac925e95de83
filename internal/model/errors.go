// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。
// 呼び出し側はKindで分岐し、エラー値の型検査には依存しない。
type ErrorKind int

const (
	// KindInternal は予期しない失敗（ストア障害、設定不備など）。詳細は外部に出さない。
	KindInternal ErrorKind = iota
	// KindUnauthenticated はトークン欠如・不正・期限切れ、またはユーザー消失。
	KindUnauthenticated
	// KindConflict はタイトル重複やユーザー名・メールアドレス重複。
	KindConflict
	// KindNotFound は所有者スコープ内に対象が存在しないこと。
	KindNotFound
	// KindInvalid はクライアントが修正可能な入力エラー。
	KindInvalid
)

// String はKindの名前を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー分類
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, task, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// KindOf はerrのエラー分類を返す。APIErrorでない場合はKindInternal。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// IsDomainError はerrがInternal以外に分類されるAPIErrorかどうかを返す。
func IsDomainError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind != KindInternal
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountConflict    = "ACCOUNT_CONFLICT"
	ErrCodeTaskConflict       = "TASK_CONFLICT"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthenticatedError は認証失敗エラーを生成する。
// 失敗理由（署名・期限・形式・ユーザー不在）を区別しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Kind:     KindUnauthenticated,
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン情報の不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Kind:     KindInvalid,
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials!",
		Category: "auth",
		Action:   "ユーザー名（またはメールアドレス）とパスワードを確認してください。",
	}
}

// NewAccountConflictError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewAccountConflictError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAccountConflict,
		Message:  "Username or email already taken",
		Category: "auth",
		Action:   "別のユーザー名またはメールアドレスを指定してください。",
	}
}

// NewTaskConflictError は同一所有者内のタイトル重複エラーを生成する。
func NewTaskConflictError(title string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeTaskConflict,
		Message:  fmt.Sprintf("Task with title: %s already exists.", title),
		Category: "task",
		Action:   "別のタイトルを指定してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 他ユーザーのタスクIDを指定した場合も同じエラーになる。
func NewTaskNotFoundError(id int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("Task with id %d not found", id),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト内容の不備エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Kind:     KindInvalid,
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。原因はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Kind:     KindInternal,
		Code:     ErrCodeInternal,
		Message:  "Something went wrong. Try again later",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
