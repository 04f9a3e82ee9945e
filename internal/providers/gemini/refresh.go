package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smart-router/router/internal/profile"
)

// googleTokenEndpoint is a var, not a const, so tests can point it at an
// httptest server instead of the real Google OAuth endpoint.
var googleTokenEndpoint = "https://oauth2.googleapis.com/token"

// refreshGoogleOAuth exchanges a refresh token for a new access token,
// computing a new absolute expiry from the upstream TTL minus a safety
// margin.
func refreshGoogleOAuth(ctx context.Context, cred profile.Credential) (profile.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return cred, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return cred, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return cred, fmt.Errorf("google oauth refresh failed: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return cred, fmt.Errorf("decode refresh response: %w", err)
	}

	const safetyMargin = 60 * time.Second
	next := cred
	next.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		next.RefreshToken = out.RefreshToken
	}
	next.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - safetyMargin).UnixMilli()
	return next, nil
}
