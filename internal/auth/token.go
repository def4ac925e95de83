// Package auth はトークンによるステートレス認証とアカウント管理を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL はトークンの既定有効期間。
const DefaultTokenTTL = 60 * time.Minute

var (
	// ErrMissingSecret は署名シークレットが未設定であることを表す。起動時に致命的エラーとして扱う。
	ErrMissingSecret = errors.New("auth: token signing secret is not configured")
	// ErrInvalidToken はトークンの署名・期限・形式のいずれかが不正であることを表す。
	// どの検査で失敗したかは区別しない。
	ErrInvalidToken = errors.New("auth: invalid token")
)

// sessionClaims はトークンに埋め込むクレーム。
type sessionClaims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenCodec はHS256で署名された期限付きトークンを発行・検証する。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。
// secretが空の場合はErrMissingSecretを返す。ttlが0以下の場合はDefaultTokenTTLを使う。
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL はトークンの有効期間を返す。Cookieの有効期限に使う。
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue はsubjectIDを埋め込んだトークンを発行する。
func (c *TokenCodec) Issue(subjectID int64) (string, error) {
	if subjectID <= 0 {
		return "", fmt.Errorf("auth: invalid subject id %d", subjectID)
	}

	issuedAt := c.now()
	claims := sessionClaims{
		ID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しsubjectIDを返す。
// 失敗時は原因に関わらずErrInvalidTokenを返す。
func (c *TokenCodec) Verify(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrInvalidToken
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	if claims.ID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.ID, nil
}
