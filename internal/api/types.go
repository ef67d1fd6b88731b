package api

// Tipos de MFA y toggles aceptados por /auth/mfa/*.
const (
	EmailMFA            = "EMAIL_MFA"
	AuthenticatorAppMFA = "AUTHENTICATOR_APP_MFA"

	Enable  = "enable"
	Disable = "disable"
)

// User es el payload de alta/actualización de usuarios.
type User struct {
	Username       string   `json:"username,omitempty"`
	Email          string   `json:"email,omitempty"`
	Password       string   `json:"password,omitempty"`
	FirstName      string   `json:"firstName,omitempty"`
	MiddleName     string   `json:"middleName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	EmailVerified  *bool    `json:"emailVerified,omitempty"`
	AccountEnabled *bool    `json:"accountEnabled,omitempty"`
}

type Role struct {
	RoleName    string   `json:"roleName"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Tokens es el subconjunto del login que usan los escenarios.
type Tokens struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	StateToken       string `json:"state_token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
	TokenType        string `json:"token_type"`
}

func Bool(b bool) *bool { return &b }
