package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/authifier/authifier/core/autherr"
)

// VerifyCaptcha checks an hCaptcha response token with the verification
// endpoint. A no-op when no secret is configured; any failure, including an
// unreachable endpoint, returns CaptchaFailed.
func (e *Engine) VerifyCaptcha(ctx context.Context, response string) error {
	if e.cfg.HCaptchaSecret == "" {
		return nil
	}
	if response == "" {
		return autherr.ErrCaptchaFailed
	}

	form := url.Values{
		"secret":   {e.cfg.HCaptchaSecret},
		"response": {response},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.HCaptchaEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return autherr.ErrCaptchaFailed
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.WarnContext(ctx, "captcha verification unreachable", "error", err)
		return autherr.ErrCaptchaFailed
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return autherr.ErrCaptchaFailed
	}
	if !result.Success {
		return autherr.ErrCaptchaFailed
	}
	return nil
}
