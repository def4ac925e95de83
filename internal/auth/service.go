package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/tasklive/internal/model"
	"github.com/hitoshi/tasklive/internal/repository"
)

// Broadcaster は所有者のスナップショットをライブ接続へ配信するインターフェース。
type Broadcaster interface {
	Broadcast(ctx context.Context, ownerID int64)
}

// Sanitizer は表示名などのプレーンテキストを正規化するインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// Service はアカウント登録とログインのビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	codec       *TokenCodec
	broadcaster Broadcaster
	sanitizer   Sanitizer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	codec *TokenCodec,
	broadcaster Broadcaster,
	sanitizer Sanitizer,
	config ServiceConfig,
) *Service {
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = 12
	}
	return &Service{
		users:       users,
		codec:       codec,
		broadcaster: broadcaster,
		sanitizer:   sanitizer,
		config:      config,
	}
}

// Register はアカウントを作成する。
// ユーザー名またはメールアドレスが既に使われている場合はConflictエラーを返す。
// 返すUserにはパスワードハッシュを含めない。
func (s *Service) Register(ctx context.Context, input model.NewUser) (*model.User, error) {
	input.Name = s.sanitizer.Sanitize(input.Name)
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if err := validateNewUser(input); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return nil, s.internal("failed to check account uniqueness", err)
	}
	if exists {
		return nil, model.NewAccountConflictError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.config.BcryptCost)
	if err != nil {
		return nil, s.internal("failed to hash password", err)
	}

	user := &model.User{
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 事前チェック後に同じユーザー名で登録された場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAccountConflictError()
		}
		return nil, s.internal("failed to create user", err)
	}

	user.PasswordHash = ""
	slog.Info("account registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login はユーザー名またはメールアドレスとパスワードを検証し、トークンを発行する。
// 該当ユーザーが無い場合とパスワード不一致の場合は同じエラーを返す。
// 成功時はそのユーザーのスナップショットをライブ接続へ配信する。
func (s *Service) Login(ctx context.Context, loginOrEmail, password string) (string, error) {
	loginOrEmail = strings.TrimSpace(loginOrEmail)
	if loginOrEmail == "" || password == "" {
		return "", model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByLoginOrEmail(ctx, loginOrEmail)
	if err != nil {
		return "", s.internal("failed to find user", err)
	}
	if user == nil {
		return "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.codec.Issue(user.ID)
	if err != nil {
		return "", s.internal("failed to issue token", err)
	}

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	s.broadcaster.Broadcast(ctx, user.ID)

	return token, nil
}

// internal は原因をログに記録し、詳細を含まない内部エラーを返す。
func (s *Service) internal(msg string, err error) error {
	slog.Error(msg, slog.String("error", err.Error()))
	return model.NewInternalError()
}

func validateNewUser(input model.NewUser) error {
	switch {
	case input.Name == "":
		return model.NewInvalidRequestError("name is required")
	case input.Username == "":
		return model.NewInvalidRequestError("username is required")
	case input.Email == "":
		return model.NewInvalidRequestError("email is required")
	case input.Password == "":
		return model.NewInvalidRequestError("password is required")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return model.NewInvalidRequestError(fmt.Sprintf("invalid email: %s", input.Email))
	}
	// bcryptは72バイトを超える入力を拒否する
	if len(input.Password) > 72 {
		return model.NewInvalidRequestError("password must be at most 72 bytes")
	}
	return nil
}
