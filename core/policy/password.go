package policy

import (
	"context"
	"crypto/sha1"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/authifier/authifier/core/autherr"
)

//go:embed data/top_passwords.txt
var topPasswordsRaw string

var topPasswords = loadList(topPasswordsRaw)

// CheckPassword enforces the minimum length and the configured
// compromised-password check. Too-short passwords return ShortPassword;
// known-compromised ones return CompromisedPassword.
func (e *Engine) CheckPassword(ctx context.Context, password string) error {
	if len(password) < MinPasswordLength {
		return autherr.ErrShortPassword
	}

	switch e.cfg.Password {
	case PasswordCustom:
		if contains(e.customPasswords, strings.ToLower(password)) {
			return autherr.ErrCompromisedPassword
		}
	case PasswordBundled:
		if contains(topPasswords, strings.ToLower(password)) {
			return autherr.ErrCompromisedPassword
		}
	case PasswordHIBP:
		return e.checkHIBP(ctx, password)
	}
	return nil
}

// checkHIBP queries a k-anonymity range endpoint with the first five hex
// characters of the password's SHA-1 and scans the suffixes in the response.
// An unreachable endpoint fails open.
func (e *Engine) checkHIBP(ctx context.Context, password string) error {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(e.cfg.HIBPEndpoint, "/"), prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.WarnContext(ctx, "password range lookup unreachable", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	for _, line := range strings.Split(string(body), "\n") {
		candidate, _, _ := strings.Cut(strings.TrimSpace(line), ":")
		if strings.EqualFold(candidate, suffix) {
			return autherr.ErrCompromisedPassword
		}
	}
	return nil
}
