package model

// TokenKind selects one of the two persisted session tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access_token"
	RefreshToken TokenKind = "refresh_token"
)

// Session is the pair of JWTs issued by the backend. Either value may be
// empty when no session is present.
type Session struct {
	// AccessToken is the short-lived bearer token sent on every request.
	AccessToken string `json:"access"`

	// RefreshToken is exchanged for a new access token when the current
	// one is rejected.
	RefreshToken string `json:"refresh,omitempty"`
}

// Empty reports whether neither token is present.
func (s Session) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}
