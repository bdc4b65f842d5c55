package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
)

const JWTKind = "jwt"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// JWTProvider forwards a raw bearer JWT. The signature is not verified here,
// the remote data server does that; the token is only checked for shape and
// expiry so that an already-expired credential fails at launch time.
type JWTProvider struct {
	parser *jwt.Parser
}

var _ Provider = (*JWTProvider)(nil)

func NewJWTProvider() *JWTProvider {
	return &JWTProvider{parser: jwt.NewParser()}
}

func (*JWTProvider) Kind() string {
	return JWTKind
}

func (p *JWTProvider) Decode(_ context.Context, credential string) (*Token, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer "))
	claims := jwt.MapClaims{}
	if _, _, err := p.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("[JWTProvider.Decode] %w", apperrors.Wrap(apperrors.ErrDecode, err))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("[JWTProvider.Decode] %w", apperrors.Wrap(apperrors.ErrDecode, err))
	}
	if exp != nil && !NowTimeFunc().Before(exp.Time) {
		return nil, fmt.Errorf("[JWTProvider.Decode] %w: token expired at %s", apperrors.ErrDecode, exp.Time.UTC().Format(time.RFC3339))
	}

	h := "Authorization: Bearer " + raw
	if err := ValidateHeader(h); err != nil {
		return nil, fmt.Errorf("[JWTProvider.Decode] %w", err)
	}
	return &Token{SessionID: NewSessionID(), Headers: []string{h}}, nil
}

func (*JWTProvider) Refresh(context.Context, RefreshRequest, RefreshInfo) (*Token, error) {
	return nil, fmt.Errorf("[JWTProvider.Refresh] %w", apperrors.ErrNoRefresh)
}
