// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tasklive/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
// 事前チェックと挿入の間で競合した場合にサービス層がConflictへ変換する。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByLoginOrEmail はユーザー名またはメールアドレスが一致するユーザーを取得する。
	// PasswordHashを含めて返す。見つからない場合はnilを返す。
	FindByLoginOrEmail(ctx context.Context, name string) (*model.User, error)

	// ExistsByUsernameOrEmail はユーザー名またはメールアドレスが既に使われているかを返す。
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// 一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作は所有者IDでスコープされる。
type TaskRepository interface {
	// FindByOwner は所有者の全タスクをID昇順で返す。
	FindByOwner(ctx context.Context, ownerID int64) ([]model.Task, error)

	// FindByOwnerAndID は所有者スコープでタスクを取得する。見つからない場合はnilを返す。
	FindByOwnerAndID(ctx context.Context, ownerID, id int64) (*model.Task, error)

	// FindByOwnerAndTitle は所有者スコープでタイトルが一致するタスクを取得する。
	// 見つからない場合はnilを返す。
	FindByOwnerAndTitle(ctx context.Context, ownerID int64, title string) (*model.Task, error)

	// Create はタスクを作成し、採番されたIDとタイムスタンプをtaskに設定する。
	// 一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, task *model.Task) error

	// Update はタイトル・説明・優先度を更新し、更新後の値をtaskに反映する。
	// 所有者は変更しない。所有者スコープに対象が無い場合はfound=falseを返し、taskは変更しない。
	Update(ctx context.Context, task *model.Task) (found bool, err error)

	// Delete は所有者スコープでタスクを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, ownerID, id int64) (bool, error)
}
