package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "bulkedit-admin"

// ErrInvalidSessionToken はクッキーの署名や期限が不正な場合のエラーです。
var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionClaims はセッションクッキーに載せるクレームです。
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner はセッションIDをHS256で署名したトークンに変換します。
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner は新しいTokenSignerを生成します。
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

// Sign はセッションIDのトークンを発行します。
func (s *TokenSigner) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse はトークンを検証してセッションIDを返します。
func (s *TokenSigner) Parse(raw string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if claims.SessionID == "" {
		return "", ErrInvalidSessionToken
	}
	return claims.SessionID, nil
}

// TTL はトークンの有効期間です。
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}
