package api

import (
	"context"
	"net/http"
)

func (c *Client) Register(ctx context.Context, u User) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/register", "", nil, u)
}

func (c *Client) GetSelfDetails(ctx context.Context, token string) (*Response, error) {
	return c.send(ctx, http.MethodGet, "/user/getSelfDetails", token, nil, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, verificationToken string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/verifyEmail", "", map[string]string{"emailVerificationToken": verificationToken}, nil)
}

func (c *Client) ResendEmailVerificationLink(ctx context.Context, usernameOrEmail string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/resend/emailVerification/link", "", map[string]string{"usernameOrEmail": usernameOrEmail}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, usernameOrEmail string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/forgot/password", "", map[string]string{"usernameOrEmail": usernameOrEmail}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, body map[string]string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/reset/password", "", nil, body)
}

func (c *Client) ChangePassword(ctx context.Context, token string, body map[string]string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/change/password", token, nil, body)
}

func (c *Client) VerifyChangePassword(ctx context.Context, token string, body map[string]string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/verify/change/password", token, nil, body)
}

func (c *Client) EmailChangeRequest(ctx context.Context, token, newEmail string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/email/change/request", token, map[string]string{"newEmail": newEmail}, nil)
}

func (c *Client) VerifyEmailChange(ctx context.Context, token, newEmailOtp, oldEmailOtp, password string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/user/verify/email/change", token, map[string]string{
		"newEmailOtp": newEmailOtp,
		"oldEmailOtp": oldEmailOtp,
		"password":    password,
	}, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, token, password string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, "/user/delete/account", token, map[string]string{"password": password}, nil)
}

func (c *Client) VerifyDeleteAccount(ctx context.Context, token, otpTotp, method string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, "/user/verify/delete/account", token, map[string]string{
		"otpTotp": otpTotp,
		"method":  method,
	}, nil)
}

func (c *Client) UpdateDetails(ctx context.Context, token string, body map[string]string) (*Response, error) {
	return c.send(ctx, http.MethodPut, "/user/update/details", token, nil, body)
}
