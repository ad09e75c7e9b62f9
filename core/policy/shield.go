package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/authifier/authifier/core/autherr"
)

// ShieldInput carries the request attributes submitted for risk scoring.
type ShieldInput struct {
	Email     string
	IP        string
	UserAgent string
}

// shieldRequest is the wire shape the shield endpoint accepts.
type shieldRequest struct {
	IP      string            `json:"ip,omitempty"`
	Email   string            `json:"email"`
	Headers map[string]string `json:"headers,omitempty"`
	DryRun  bool              `json:"dry_run"`
}

// shieldResponse is the verdict. Reasons are informational only.
type shieldResponse struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons"`
}

// CheckShield submits the registration to the shield endpoint. A no-op when
// no API key is configured. A blocked verdict returns BlockedByShield. When
// shield itself is unreachable: strict mode returns InternalError, otherwise
// the check passes with a warning.
func (e *Engine) CheckShield(ctx context.Context, input ShieldInput) error {
	if e.cfg.ShieldAPIKey == "" {
		return nil
	}

	body := shieldRequest{
		IP:    input.IP,
		Email: input.Email,
	}
	if input.UserAgent != "" {
		body.Headers = map[string]string{"User-Agent": input.UserAgent}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return autherr.ErrInternalError
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.ShieldEndpoint, bytes.NewReader(payload))
	if err != nil {
		return autherr.ErrInternalError
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", e.cfg.ShieldAPIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if e.cfg.ShieldStrict {
			return autherr.ErrInternalError
		}
		e.log.WarnContext(ctx, "shield unreachable, allowing", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if e.cfg.ShieldStrict {
			return autherr.ErrInternalError
		}
		e.log.WarnContext(ctx, "shield returned non-200, allowing", "status", resp.StatusCode)
		return nil
	}

	var result shieldResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if e.cfg.ShieldStrict {
			return autherr.ErrInternalError
		}
		return nil
	}
	if result.Blocked {
		e.log.InfoContext(ctx, "shield blocked registration", "reasons", result.Reasons)
		return autherr.ErrBlockedByShield
	}
	return nil
}
