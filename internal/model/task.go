// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Priority はタスクの優先度を表す。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "LOW"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "MEDIUM"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "HIGH"
)

// ParsePriority は文字列を優先度に変換する。大文字小文字は区別しない。
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}

// Task はユーザーが所有するタスクを表す。
// OwnerIDは作成時に認証済みユーザーのIDで固定され、以後変更されない。
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    Priority  `json:"priority"`
	OwnerID     int64     `json:"ownerId"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskInput はタスクの作成・更新リクエストの内容を表す。
// 所有者はここに含めず、常に認証済みユーザーから決定する。
type TaskInput struct {
	Title       string
	Description *string
	Priority    Priority
}

// TaskSnapshot は1ユーザーの全タスクをID順に並べたもの。
// ミューテーションの度に再計算され、ライブ配信の単位となる。
type TaskSnapshot []Task
