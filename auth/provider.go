package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
)

// RefreshDescriptor tells a browser how to reach the identity provider to
// re-authenticate: submit Params to Endpoint using Method.
type RefreshDescriptor struct {
	Method   string            `json:"method"`
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params"`
}

// RefreshInfo is the opaque refresh metadata stored in the refresh registry.
// Data carries provider-private values needed to complete a refresh.
type RefreshInfo struct {
	InitialRedirect *RefreshDescriptor `json:"initial_redirect"`
	Data            map[string]string  `json:"data,omitempty"`
}

// Token is a decoded credential: the headers the mount engine sends with
// every request, a fresh session id, and optional refresh metadata. A nil
// Refresh means the provider has no refresh flow.
type Token struct {
	SessionID string
	Headers   []string
	Refresh   *RefreshInfo
}

// RefreshRequest is the material returned by the identity provider callback.
type RefreshRequest struct {
	Code        string
	RedirectURI string
}

// Provider decodes credentials for one auth scheme. Kind is the hint string
// the provider is registered under.
type Provider interface {
	Kind() string
	Decode(ctx context.Context, credential string) (*Token, error)
	Refresh(ctx context.Context, req RefreshRequest, info RefreshInfo) (*Token, error)
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// DecodeBase64URL decodes base64url input regardless of padding.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecode, err)
	}
	return data, nil
}

// DecodeBase64JSON decodes padding-insensitive base64url JSON into v.
func DecodeBase64JSON(s string, v any) error {
	data, err := DecodeBase64URL(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(apperrors.ErrDecode, err)
	}
	return nil
}

// ValidateHeader rejects header strings that cannot be stored in the
// line-oriented, tab-separated mount config.
func ValidateHeader(h string) error {
	if strings.ContainsAny(h, "\t\r\n") {
		return fmt.Errorf("%w: header contains a tab or newline", apperrors.ErrDecode)
	}
	return nil
}

// Clone returns a deep copy of the refresh info.
func (ri RefreshInfo) Clone() RefreshInfo {
	out := RefreshInfo{}
	if ri.InitialRedirect != nil {
		d := *ri.InitialRedirect
		d.Params = copyMap(ri.InitialRedirect.Params)
		out.InitialRedirect = &d
	}
	out.Data = copyMap(ri.Data)
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
