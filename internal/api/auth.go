package api

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}, nil)
}

func (c *Client) Logout(ctx context.Context, token string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) LogoutAllDevices(ctx context.Context, token string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/logout/allDevices", token, nil, nil)
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/refresh/accessToken", "", map[string]string{"refreshToken": refreshToken}, nil)
}

func (c *Client) RevokeAccessToken(ctx context.Context, token string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/revoke/accessToken", token, nil, nil)
}

func (c *Client) RevokeRefreshToken(ctx context.Context, refreshToken string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/revoke/refreshToken", "", map[string]string{"refreshToken": refreshToken}, nil)
}

// RequestMFAToggle pide habilitar/deshabilitar un tipo de MFA.
// Para AUTHENTICATOR_APP_MFA + enable el cuerpo es el PNG del QR.
func (c *Client) RequestMFAToggle(ctx context.Context, token, mfaType, toggle string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/mfa/requestTo/toggle", token, map[string]string{
		"type":   mfaType,
		"toggle": toggle,
	}, nil)
}

func (c *Client) VerifyMFAToggle(ctx context.Context, token, mfaType, toggle, otpTotp string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/mfa/verifyTo/toggle", token, map[string]string{
		"type":    mfaType,
		"toggle":  toggle,
		"otpTotp": otpTotp,
	}, nil)
}

func (c *Client) VerifyMFALogin(ctx context.Context, mfaType, stateToken, otpTotp string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/auth/mfa/verifyTo/login", "", map[string]string{
		"type":       mfaType,
		"stateToken": stateToken,
		"otpTotp":    otpTotp,
	}, nil)
}

// LoginTokens hace login, exige 200 y decodifica los tokens.
func (c *Client) LoginTokens(ctx context.Context, usernameOrEmail, password string) (Tokens, error) {
	var t Tokens
	resp, err := c.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return t, err
	}
	if err := Expect(resp, http.StatusOK); err != nil {
		return t, err
	}
	if err := resp.Decode(&t); err != nil {
		return t, fmt.Errorf("api: decode login response: %w", err)
	}
	return t, nil
}

func (c *Client) loginField(ctx context.Context, usernameOrEmail, password, field string) (string, error) {
	resp, err := c.Login(ctx, usernameOrEmail, password)
	if err != nil {
		return "", err
	}
	if err := Expect(resp, http.StatusOK); err != nil {
		return "", err
	}
	v := resp.String(field)
	if v == "" {
		return "", fmt.Errorf("api: login response has no %s", field)
	}
	return v, nil
}

func (c *Client) AccessToken(ctx context.Context, usernameOrEmail, password string) (string, error) {
	return c.loginField(ctx, usernameOrEmail, password, "access_token")
}

func (c *Client) RefreshToken(ctx context.Context, usernameOrEmail, password string) (string, error) {
	return c.loginField(ctx, usernameOrEmail, password, "refresh_token")
}

// StateToken se usa cuando el usuario tiene MFA: el login devuelve state_token en vez de tokens.
func (c *Client) StateToken(ctx context.Context, usernameOrEmail, password string) (string, error) {
	return c.loginField(ctx, usernameOrEmail, password, "state_token")
}
