package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-autolaunch/internal/errors"
	"golang.org/x/oauth2"
)

const OAuth2Kind = "oauth2"

// Keys in RefreshInfo.Data.
const (
	oauth2DataClientID     = "client_id"
	oauth2DataClientSecret = "client_secret"
	oauth2DataAuthURL      = "auth_url"
	oauth2DataTokenURL     = "token_url"
	oauth2DataScopes       = "scopes"
)

type oauth2Credential struct {
	AccessToken  string   `json:"access_token"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	Issuer       string   `json:"issuer"`
	Scopes       []string `json:"scopes"`
}

// OAuth2Provider handles standard authorization-code clients. The access
// token is sent as a bearer header; re-authentication redirects the browser
// to the authorize endpoint and the callback code is exchanged at the token
// endpoint. Endpoints may be given directly or discovered from an OIDC issuer.
type OAuth2Provider struct{}

var _ Provider = OAuth2Provider{}

func NewOAuth2Provider() OAuth2Provider {
	return OAuth2Provider{}
}

func (OAuth2Provider) Kind() string {
	return OAuth2Kind
}

func (p OAuth2Provider) Decode(ctx context.Context, credential string) (*Token, error) {
	var cred oauth2Credential
	if err := DecodeBase64JSON(credential, &cred); err != nil {
		return nil, fmt.Errorf("[OAuth2Provider.Decode] %w", err)
	}

	endpoint := oauth2.Endpoint{AuthURL: cred.AuthURL, TokenURL: cred.TokenURL}
	if (endpoint.AuthURL == "" || endpoint.TokenURL == "") && cred.Issuer != "" {
		provider, err := oidc.NewProvider(ctx, cred.Issuer)
		if err != nil {
			return nil, fmt.Errorf("[OAuth2Provider.Decode] %w: oidc discovery for %s: %w", apperrors.ErrDecode, cred.Issuer, err)
		}
		discovered := provider.Endpoint()
		if endpoint.AuthURL == "" {
			endpoint.AuthURL = discovered.AuthURL
		}
		if endpoint.TokenURL == "" {
			endpoint.TokenURL = discovered.TokenURL
		}
	}

	var info *RefreshInfo
	if cred.ClientID != "" && endpoint.AuthURL != "" && endpoint.TokenURL != "" {
		cfg := oauth2.Config{ClientID: cred.ClientID, Endpoint: endpoint, Scopes: cred.Scopes}
		descriptor, err := authorizeDescriptor(&cfg)
		if err != nil {
			return nil, fmt.Errorf("[OAuth2Provider.Decode] %w", err)
		}
		info = &RefreshInfo{
			InitialRedirect: descriptor,
			Data: map[string]string{
				oauth2DataClientID: cred.ClientID,
				oauth2DataAuthURL:  endpoint.AuthURL,
				oauth2DataTokenURL: endpoint.TokenURL,
				oauth2DataScopes:   strings.Join(cred.Scopes, " "),
			},
		}
		if cred.ClientSecret != "" {
			info.Data[oauth2DataClientSecret] = cred.ClientSecret
		}
	}

	return bearerToken(cred.AccessToken, info)
}

func (p OAuth2Provider) Refresh(ctx context.Context, req RefreshRequest, info RefreshInfo) (*Token, error) {
	if info.InitialRedirect == nil || info.Data[oauth2DataTokenURL] == "" {
		return nil, fmt.Errorf("[OAuth2Provider.Refresh] %w", apperrors.ErrNoRefresh)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("[OAuth2Provider.Refresh] %w: empty code", apperrors.ErrRefresh)
	}

	cfg := oauth2.Config{
		ClientID:     info.Data[oauth2DataClientID],
		ClientSecret: info.Data[oauth2DataClientSecret],
		Endpoint: oauth2.Endpoint{
			AuthURL:  info.Data[oauth2DataAuthURL],
			TokenURL: info.Data[oauth2DataTokenURL],
		},
		RedirectURL: req.RedirectURI,
		Scopes:      strings.Fields(info.Data[oauth2DataScopes]),
	}
	tok, err := cfg.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("[OAuth2Provider.Refresh] %w", apperrors.Wrap(apperrors.ErrRefresh, err))
	}

	next := info.Clone()
	return bearerToken(tok.AccessToken, &next)
}

// authorizeDescriptor splits the authorize URL built by the oauth2 client into
// an endpoint and form params. state and redirect_uri are added per request.
func authorizeDescriptor(cfg *oauth2.Config) (*RefreshDescriptor, error) {
	u, err := url.Parse(cfg.AuthCodeURL(""))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecode, err)
	}
	params := map[string]string{}
	for k, v := range u.Query() {
		if k == "state" || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	u.RawQuery = ""
	return &RefreshDescriptor{Method: http.MethodGet, Endpoint: u.String(), Params: params}, nil
}

func bearerToken(accessToken string, info *RefreshInfo) (*Token, error) {
	headers := []string{}
	if accessToken != "" {
		h := "Authorization: Bearer " + accessToken
		if err := ValidateHeader(h); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return &Token{SessionID: NewSessionID(), Headers: headers, Refresh: info}, nil
}
