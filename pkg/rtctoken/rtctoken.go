// Package rtctoken mints the short-lived credentials a participant presents to
// the media transport to join a call channel.
package rtctoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const RolePublisher Role = "publisher"

var (
	ErrMissingAppCredentials = errors.New("media app id and certificate are required")
	ErrInvalidGrant          = errors.New("grant requires room, channel and account")
	ErrInvalidToken          = errors.New("invalid media token")
)

// Grant scopes a token to one channel and one account.
type Grant struct {
	RoomID  string
	Channel string
	Account string
	Role    Role
}

type Claims struct {
	AppID   string `json:"appId"`
	RoomID  string `json:"roomId"`
	Channel string `json:"channel"`
	Account string `json:"account"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// Builder signs grants with the media app certificate.
type Builder struct {
	appID       string
	certificate []byte
	now         func() time.Time
}

func NewBuilder(appID, certificate string) (*Builder, error) {
	if appID == "" || certificate == "" {
		return nil, ErrMissingAppCredentials
	}
	return &Builder{
		appID:       appID,
		certificate: []byte(certificate),
		now:         time.Now,
	}, nil
}

func (b *Builder) AppID() string {
	return b.appID
}

// IssueToken returns a token valid for ttl. Privileges expire with the token.
func (b *Builder) IssueToken(ctx context.Context, grant Grant, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if grant.RoomID == "" || grant.Channel == "" || grant.Account == "" {
		return "", ErrInvalidGrant
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if grant.Role == "" {
		grant.Role = RolePublisher
	}

	now := b.now()
	claims := Claims{
		AppID:   b.appID,
		RoomID:  grant.RoomID,
		Channel: grant.Channel,
		Account: grant.Account,
		Role:    grant.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    b.appID,
			Subject:   grant.Account,
			Audience:  jwt.ClaimStrings{grant.Channel},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.certificate)
	if err != nil {
		return "", fmt.Errorf("failed to sign media token: %w", err)
	}
	return token, nil
}

// parse validates a token issued by this builder.
func (b *Builder) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(*jwt.Token) (interface{}, error) { return b.certificate, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(b.appID),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
