package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL はセッショントークンのデフォルト有効期間。
const DefaultSessionTTL = 24 * time.Hour

// Claims はセッショントークンのクレーム。
// userId/emailは発行時の値がそのまま保持され、jtiは失効リストのキーになる。
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Expiry は有効期限を返す。
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenManager はHS256で署名したセッショントークンの発行と検証を行う。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。ttlが0以下の場合は24時間を使う。
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す。
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue は新しいセッショントークンを発行する。
func (m *TokenManager) Issue(userID, email string) (string, *Claims, error) {
	now := m.now()
	return m.sign(userID, email, now, now.Add(m.ttl))
}

// Reissue は既存のクレームと同じuserId/emailで新しいトークンを発行する。
// 新しい有効期限は元の有効期限より必ず後になる（同一秒内の再発行でも+1秒）。
func (m *TokenManager) Reissue(old *Claims) (string, *Claims, error) {
	now := m.now()
	exp := now.Add(m.ttl).Truncate(time.Second)
	if oldExp := old.Expiry(); !exp.After(oldExp) {
		exp = oldExp.Add(time.Second)
	}
	return m.sign(old.UserID, old.Email, now, exp)
}

func (m *TokenManager) sign(userID, email string, issuedAt, expiresAt time.Time) (string, *Claims, error) {
	if len(m.secret) == 0 {
		return "", nil, errors.New("jwt secret is empty")
	}

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse はトークンの署名・アルゴリズム・有効期限を検証してクレームを返す。
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
