package profile

// Kind discriminates the profile credential sum type.
type Kind string

const (
	KindOAuth  Kind = "oauth"
	KindAPIKey Kind = "api_key"
	KindToken  Kind = "token"
)

// Credential is a tagged union over the three credential shapes the store
// persists. Exactly the fields relevant to Kind are populated; adapters
// branch on Kind in getHeaders/refreshToken.
type Credential struct {
	Kind       Kind   `json:"kind"`
	ProviderID string `json:"providerId"`

	// OAuth
	AccessToken   string `json:"accessToken,omitempty"`
	RefreshToken  string `json:"refreshToken,omitempty"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"` // epoch ms, absolute
	Email         string `json:"email,omitempty"`
	AccountID     string `json:"accountId,omitempty"`
	ProjectID     string `json:"projectId,omitempty"`
	ResourceURL   string `json:"resourceUrl,omitempty"`

	// API key
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"` // metadata.baseUrl override

	// Bearer token
	BearerToken     string `json:"bearerToken,omitempty"`
	BearerExpiresAt int64  `json:"bearerExpiresAt,omitempty"`
}

// IsOAuthExpired reports whether an OAuth credential's access token has
// passed its absolute expiry, given the current epoch-ms time.
func (c Credential) IsOAuthExpired(nowMs int64) bool {
	return c.Kind == KindOAuth && c.ExpiresAt > 0 && c.ExpiresAt < nowMs
}

// String masks secret material so credentials never appear unmasked in
// logs (mirrors llm.CredentialOverride's masking).
func (c Credential) String() string {
	switch c.Kind {
	case KindOAuth:
		return "oauth:" + c.ProviderID + ":" + mask(c.AccessToken)
	case KindAPIKey:
		return "api_key:" + c.ProviderID + ":" + mask(c.APIKey)
	case KindToken:
		return "token:" + c.ProviderID + ":" + mask(c.BearerToken)
	default:
		return "credential:" + c.ProviderID
	}
}

// DisplayCredential is the masked view returned by listAllProfiles.
// The store's durable document marshals Credential's real fields
// directly — credentials are persisted verbatim on disk — this
// type exists only for anything that renders a profile back to an operator.
type DisplayCredential struct {
	Kind        Kind   `json:"kind"`
	ProviderID  string `json:"providerId"`
	AccessToken string `json:"accessToken,omitempty"`
	Email       string `json:"email,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
	BearerToken string `json:"bearerToken,omitempty"`
}

// Display masks secret fields so a Credential never appears unmasked in
// logs or an admin-facing API response (mirrors llm.CredentialOverride's
// masking).
func (c Credential) Display() DisplayCredential {
	d := DisplayCredential{Kind: c.Kind, ProviderID: c.ProviderID, Email: c.Email}
	if c.AccessToken != "" {
		d.AccessToken = mask(c.AccessToken)
	}
	if c.APIKey != "" {
		d.APIKey = mask(c.APIKey)
	}
	if c.BearerToken != "" {
		d.BearerToken = mask(c.BearerToken)
	}
	return d
}

func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "…" + secret[len(secret)-4:]
}
