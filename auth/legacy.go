package auth

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
)

const LegacyKind = "legacy"

// LegacyProvider accepts a raw access token, as issued before credentials
// were wrapped in JSON. It has no refresh flow.
type LegacyProvider struct{}

var _ Provider = LegacyProvider{}

func NewLegacyProvider() LegacyProvider {
	return LegacyProvider{}
}

func (LegacyProvider) Kind() string {
	return LegacyKind
}

func (LegacyProvider) Decode(_ context.Context, credential string) (*Token, error) {
	credential = strings.TrimSpace(credential)
	headers := []string{}
	if credential != "" {
		h := polyauthHeaderName + ": " + credential
		if err := ValidateHeader(h); err != nil {
			return nil, fmt.Errorf("[LegacyProvider.Decode] %w", err)
		}
		headers = append(headers, h)
	}
	return &Token{SessionID: NewSessionID(), Headers: headers}, nil
}

func (LegacyProvider) Refresh(context.Context, RefreshRequest, RefreshInfo) (*Token, error) {
	return nil, fmt.Errorf("[LegacyProvider.Refresh] %w", apperrors.ErrNoRefresh)
}
