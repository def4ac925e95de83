// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（認証済みアイデンティティ）を表す。
// PasswordHashはUserStoreの内部でのみ扱い、レスポンスやトークンには含めない。
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser はユーザー登録時の入力を表す。
type NewUser struct {
	Name     string
	Username string
	Email    string
	Password string
}
