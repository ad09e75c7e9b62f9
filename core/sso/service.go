package sso

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"

	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/logger"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/jwt"
	"github.com/authifier/authifier/pkg/token"
)

// Outbound call timeouts.
const (
	discoveryTimeout = 5 * time.Second
	exchangeTimeout  = 30 * time.Second
	userinfoTimeout  = 10 * time.Second
)

// nonceLength is the size of the nonce bound into discoverable-mode
// authorization requests.
const nonceLength = 32

// Tokens is the outcome of a successful code exchange.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Authorization is the outcome of starting a flow: the URI to send the user
// to, and the signed state for the caller to place in a short-lived cookie.
type Authorization struct {
	URI         string `json:"uri"`
	SignedState string `json:"-"`
}

// Service drives the OIDC flows for the configured providers.
type Service struct {
	providers map[string]Provider
	store     Store
	signer    *jwt.Signer
	client    *http.Client
	log       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithHTTPClient replaces the HTTP client used for discovery, exchange, and
// userinfo calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the SSO service over the given providers. The signer signs the
// OAuth state value handed back to the HTTP layer.
func New(providers []Provider, st Store, signer *jwt.Signer, opts ...Option) *Service {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}
	s := &Service{
		providers: byID,
		store:     st,
		signer:    signer,
		client:    &http.Client{Timeout: exchangeTimeout},
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers lists the configured provider ids.
func (s *Service) Providers() []string {
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	return ids
}

// CreateAuthorizationURI starts a flow against the named provider: resolves
// endpoints, mints state (and nonce and PKCE verifier where applicable),
// persists the callback, and returns the authorization URI plus the signed
// state.
func (s *Service) CreateAuthorizationURI(ctx context.Context, idpID, redirectURI string) (*Authorization, error) {
	p, ok := s.providers[idpID]
	if !ok {
		return nil, autherr.NewIncorrectData("provider")
	}

	endpoint, _, err := s.resolveEndpoints(ctx, p)
	if err != nil {
		return nil, err
	}

	state := ulid.Make().String()
	cb := &Callback{ID: state, IdPID: p.ID, RedirectURI: redirectURI}

	conf := oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: redirectURI,
		Endpoint:    endpoint,
		Scopes:      p.Scopes,
	}

	var opts []oauth2.AuthCodeOption
	if p.CodeChallenge {
		cb.CodeVerifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(cb.CodeVerifier))
	}
	if p.Endpoints.Discoverable {
		nonce, err := token.Secure(nonceLength)
		if err != nil {
			return nil, autherr.ErrInternalError
		}
		cb.Nonce = nonce
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}

	if err := s.store.SaveCallback(ctx, cb); err != nil {
		return nil, autherr.NewDatabaseError("save", "sso_callback")
	}

	signed, err := s.signer.Sign(state, CallbackTTL)
	if err != nil {
		return nil, autherr.ErrInternalError
	}

	s.log.InfoContext(ctx, "authorization started", logger.Provider(p.ID))
	return &Authorization{URI: conf.AuthCodeURL(state, opts...), SignedState: signed}, nil
}

// ExchangeAuthorizationCode redeems a callback: signedState comes from the
// cookie, queryState from the provider redirect. Any mismatch between the
// two, or an unknown or expired callback, fails with StateMismatch, and a
// mismatched callback is deleted so it cannot be retried.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, code, queryState, signedState string) (*Tokens, error) {
	cookieState, err := s.signer.Verify(signedState)
	if err != nil {
		return nil, autherr.ErrStateMismatch
	}

	cb, err := s.store.FindCallback(ctx, cookieState)
	if errors.Is(err, store.ErrNotFound) {
		return nil, autherr.ErrStateMismatch
	}
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "sso_callback")
	}
	if queryState != cb.ID {
		_ = s.store.DeleteCallback(ctx, cb.ID)
		return nil, autherr.ErrStateMismatch
	}

	p, ok := s.providers[cb.IdPID]
	if !ok {
		return nil, autherr.NewIncorrectData("provider")
	}

	endpoint, provider, err := s.resolveEndpoints(ctx, p)
	if err != nil {
		return nil, err
	}

	conf := oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  cb.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       p.Scopes,
	}
	switch p.Credentials {
	case CredentialsNone:
		conf.ClientSecret = ""
		conf.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	case CredentialsPost:
		conf.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	default:
		conf.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	}

	var opts []oauth2.AuthCodeOption
	if cb.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(cb.CodeVerifier))
	}

	exCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, s.client), exchangeTimeout)
	defer cancel()
	tok, err := conf.Exchange(exCtx, code, opts...)
	if err != nil {
		return nil, mapOAuthError(err)
	}

	tokens := &Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if raw, ok := tok.Extra("id_token").(string); ok {
		tokens.IDToken = raw
	}

	// Discoverable providers bind the nonce into the ID token; check it
	// before accepting the exchange.
	if provider != nil && cb.Nonce != "" {
		if err := s.verifyNonce(ctx, provider, p, tokens.IDToken, cb.Nonce); err != nil {
			return nil, err
		}
	}

	if err := s.store.DeleteCallback(ctx, cb.ID); err != nil {
		return nil, autherr.NewDatabaseError("delete", "sso_callback")
	}

	s.log.InfoContext(ctx, "authorization code exchanged", logger.Provider(p.ID))
	return tokens, nil
}

func (s *Service) verifyNonce(ctx context.Context, provider *oidc.Provider, p Provider, rawIDToken, nonce string) error {
	if rawIDToken == "" {
		return autherr.ErrInvalidToken
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: p.ClientID})
	idToken, err := verifier.Verify(oidc.ClientContext(ctx, s.client), rawIDToken)
	if err != nil {
		return autherr.ErrInvalidToken
	}
	if idToken.Nonce != nonce {
		return autherr.ErrStateMismatch
	}
	return nil
}

// FetchUserinfo retrieves the raw claim map from the provider's userinfo
// endpoint. Returns nil with no error when the provider has no userinfo
// endpoint.
func (s *Service) FetchUserinfo(ctx context.Context, idpID, accessToken string) (map[string]any, error) {
	p, ok := s.providers[idpID]
	if !ok {
		return nil, autherr.NewIncorrectData("provider")
	}

	endpoint := p.Endpoints.Userinfo
	if p.Endpoints.Discoverable {
		provider, err := s.discover(ctx, p)
		if err != nil {
			return nil, err
		}
		endpoint = provider.UserInfoEndpoint()
	}
	if endpoint == "" {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, userinfoTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, autherr.ErrRequestFailed
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, autherr.ErrRequestFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapBearerError(resp.Header.Get("WWW-Authenticate"))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, autherr.ErrContentTypeMismatch
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil || claims == nil {
		return nil, autherr.ErrInvalidUserinfo
	}
	return claims, nil
}

// resolveEndpoints returns the OAuth endpoint pair, via discovery for
// discoverable providers. The discovered *oidc.Provider is returned alongside
// for ID token verification; nil in manual mode.
func (s *Service) resolveEndpoints(ctx context.Context, p Provider) (oauth2.Endpoint, *oidc.Provider, error) {
	if !p.Endpoints.Discoverable {
		return oauth2.Endpoint{
			AuthURL:  p.Endpoints.Authorization,
			TokenURL: p.Endpoints.Token,
		}, nil, nil
	}
	provider, err := s.discover(ctx, p)
	if err != nil {
		return oauth2.Endpoint{}, nil, err
	}
	return provider.Endpoint(), provider, nil
}

func (s *Service) discover(ctx context.Context, p Provider) (*oidc.Provider, error) {
	discCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, s.client), discoveryTimeout)
	defer cancel()
	provider, err := oidc.NewProvider(discCtx, p.Issuer)
	if err != nil {
		s.log.WarnContext(ctx, "provider discovery failed",
			logger.Provider(p.ID), logger.Error(err))
		return nil, autherr.ErrRequestFailed
	}
	return provider, nil
}

// mapOAuthError translates a token-endpoint error response into the closed
// error union. Anything that is not a structured OAuth error collapses to
// RequestFailed.
func mapOAuthError(err error) error {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return autherr.ErrRequestFailed
	}
	return mapOAuthErrorCode(retrieve.ErrorCode)
}

func mapOAuthErrorCode(code string) error {
	switch code {
	case "invalid_request":
		return autherr.ErrInvalidRequest
	case "invalid_client":
		return autherr.ErrInvalidClient
	case "invalid_grant":
		return autherr.ErrInvalidGrant
	case "unauthorized_client":
		return autherr.ErrUnauthorizedClient
	case "unsupported_grant_type":
		return autherr.ErrUnsupportedGrantType
	case "invalid_scope":
		return autherr.ErrInvalidScope
	default:
		return autherr.ErrRequestFailed
	}
}

// mapBearerError parses a WWW-Authenticate: Bearer challenge and maps its
// error code by the same table as the token endpoint.
func mapBearerError(header string) error {
	if header == "" {
		return autherr.ErrRequestFailed
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "Bearer"))
		key, value, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(key) != "error" {
			continue
		}
		return mapOAuthErrorCode(strings.Trim(strings.TrimSpace(value), `"`))
	}
	return autherr.ErrRequestFailed
}
