package auth

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
)

const (
	PolyauthKind       = "polyauth"
	polyauthHeaderName = "X-Auth-Access-Token"
)

// polyauthCredential is the base64url JSON blob issued by a polyauth server.
type polyauthCredential struct {
	Token                 *string           `json:"token"`
	RefreshEndpoint       string            `json:"refresh_endpoint"`
	RefreshEndpointParams map[string]string `json:"refresh_endpoint_params"`
}

// PolyauthProvider sends the access token in an X-Auth-Access-Token header.
// Re-authentication POSTs the stored params to the refresh endpoint, and the
// callback code is the new access token.
type PolyauthProvider struct{}

var _ Provider = PolyauthProvider{}

func NewPolyauthProvider() PolyauthProvider {
	return PolyauthProvider{}
}

func (PolyauthProvider) Kind() string {
	return PolyauthKind
}

func (p PolyauthProvider) Decode(_ context.Context, credential string) (*Token, error) {
	var cred polyauthCredential
	if err := DecodeBase64JSON(credential, &cred); err != nil {
		return nil, fmt.Errorf("[PolyauthProvider.Decode] %w", err)
	}
	if cred.Token == nil {
		return nil, fmt.Errorf("[PolyauthProvider.Decode] %w: missing token", apperrors.ErrDecode)
	}

	var info *RefreshInfo
	if cred.RefreshEndpoint != "" && cred.RefreshEndpointParams != nil {
		info = &RefreshInfo{InitialRedirect: &RefreshDescriptor{
			Method:   http.MethodPost,
			Endpoint: cred.RefreshEndpoint,
			Params:   cred.RefreshEndpointParams,
		}}
	}
	return p.token(*cred.Token, info)
}

func (p PolyauthProvider) Refresh(_ context.Context, req RefreshRequest, info RefreshInfo) (*Token, error) {
	if info.InitialRedirect == nil {
		return nil, fmt.Errorf("[PolyauthProvider.Refresh] %w", apperrors.ErrNoRefresh)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("[PolyauthProvider.Refresh] %w: empty code", apperrors.ErrRefresh)
	}
	next := info.Clone()
	return p.token(req.Code, &next)
}

func (PolyauthProvider) token(accessToken string, info *RefreshInfo) (*Token, error) {
	headers := []string{}
	if accessToken != "" {
		h := polyauthHeaderName + ": " + accessToken
		if err := ValidateHeader(h); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return &Token{
		SessionID: NewSessionID(),
		Headers:   headers,
		Refresh:   info,
	}, nil
}
