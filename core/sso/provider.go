// Package sso implements the relying-party side of the OIDC
// authorization-code + PKCE flow: provider discovery, authorization URI
// assembly with state/nonce binding, callback redemption, and userinfo
// retrieval.
package sso

// CredentialsMode selects how client credentials are attached to the token
// exchange request.
type CredentialsMode string

const (
	// CredentialsNone sends no client secret (public client).
	CredentialsNone CredentialsMode = "none"
	// CredentialsBasic sends client_id:client_secret via HTTP Basic auth.
	CredentialsBasic CredentialsMode = "basic"
	// CredentialsPost sends the secret in the form body.
	CredentialsPost CredentialsMode = "post"
)

// Endpoints locates the provider's OAuth endpoints. Discoverable providers
// are resolved from {issuer}/.well-known/openid-configuration; manual ones
// use the URLs given here.
type Endpoints struct {
	Discoverable  bool   `json:"discoverable"`
	Authorization string `json:"authorization,omitempty"`
	Token         string `json:"token,omitempty"`
	Userinfo      string `json:"userinfo,omitempty"`
}

// Provider is the static configuration of one identity provider.
type Provider struct {
	ID           string          `json:"id"`
	Issuer       string          `json:"issuer"`
	ClientID     string          `json:"client_id"`
	ClientSecret string          `json:"client_secret"`
	Scopes       []string        `json:"scopes"`
	Endpoints    Endpoints       `json:"endpoints"`
	Credentials  CredentialsMode `json:"credentials"`
	// Claims maps well-known claim names to the provider's claim keys, for
	// callers interpreting the userinfo document.
	Claims map[string]string `json:"claims,omitempty"`
	// CodeChallenge enables PKCE (S256) on the authorization request.
	CodeChallenge bool `json:"code_challenge"`
}
