package mfa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

// El servidor rechaza habilitar un MFA ya activo tanto al pedir el toggle como
// al verificarlo. Son condiciones distintas y se reportan por separado.
var (
	ErrAlreadyEnabledOnRequest = errors.New("mfa: already enabled (toggle request rejected)")
	ErrAlreadyEnabledOnVerify  = errors.New("mfa: already enabled (toggle verification rejected)")
	ErrNotAnImage              = errors.New("mfa: toggle request did not return an image")
	ErrNoMailbox               = errors.New("mfa: email flows need a mailbox retriever")
)

const (
	DefaultEnableEmailSubject = "Otp to enable email Mfa"
	DefaultLoginEmailSubject  = "Otp to verify email Mfa to login"
)

// Flow orquesta los flujos de MFA contra el servicio IAM.
type Flow struct {
	Client  *api.Client
	Decoder *Decoder
	// Mail es necesario solo para los flujos de EMAIL_MFA.
	Mail *mailbox.Retriever

	EnableEmailSubject string
	LoginEmailSubject  string
}

func NewFlow(client *api.Client, mail *mailbox.Retriever) *Flow {
	return &Flow{
		Client:             client,
		Decoder:            NewDecoder(),
		Mail:               mail,
		EnableEmailSubject: DefaultEnableEmailSubject,
		LoginEmailSubject:  DefaultLoginEmailSubject,
	}
}

func alreadyEnabled(resp *api.Response) bool {
	return resp.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(resp.String("message")), "mfa is already enabled")
}

func (f *Flow) requestEnable(ctx context.Context, token, mfaType string) (*api.Response, error) {
	resp, err := f.Client.RequestMFAToggle(ctx, token, mfaType, api.Enable)
	if err != nil {
		return nil, err
	}
	if alreadyEnabled(resp) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyEnabledOnRequest, mfaType)
	}
	if err := api.Expect(resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *Flow) verifyEnable(ctx context.Context, token, mfaType, code string) error {
	resp, err := f.Client.VerifyMFAToggle(ctx, token, mfaType, api.Enable, code)
	if err != nil {
		return err
	}
	if alreadyEnabled(resp) {
		return fmt.Errorf("%w: %s", ErrAlreadyEnabledOnVerify, mfaType)
	}
	return api.Expect(resp, http.StatusOK)
}

// EnableAuthenticatorApp pide el QR, recupera el secreto y verifica con un TOTP
// fresco. Retorna el secreto para logins posteriores.
func (f *Flow) EnableAuthenticatorApp(ctx context.Context, token string) (string, error) {
	resp, err := f.requestEnable(ctx, token, api.AuthenticatorAppMFA)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(resp.ContentType(), "image/") {
		return "", fmt.Errorf("%w: content-type %q", ErrNotAnImage, resp.ContentType())
	}

	uri, err := f.Decoder.Decode(resp.Bytes())
	if err != nil {
		return "", err
	}
	secret, err := SecretFromURI(uri)
	if err != nil {
		return "", err
	}
	code, err := CodeNow(secret)
	if err != nil {
		return "", err
	}
	if err := f.verifyEnable(ctx, token, api.AuthenticatorAppMFA, code); err != nil {
		return "", err
	}
	logger.From(ctx).Info("authenticator app mfa enabled", logger.Component("mfa"))
	return secret, nil
}

// EnableEmailMFA pide el toggle, lee el OTP del buzón de recipient y verifica.
func (f *Flow) EnableEmailMFA(ctx context.Context, token, recipient string) error {
	if f.Mail == nil {
		return ErrNoMailbox
	}
	if _, err := f.requestEnable(ctx, token, api.EmailMFA); err != nil {
		return err
	}
	otp, err := f.Mail.OTP(ctx, recipient, f.EnableEmailSubject)
	if err != nil {
		return err
	}
	if err := f.verifyEnable(ctx, token, api.EmailMFA, otp); err != nil {
		return err
	}
	logger.From(ctx).Info("email mfa enabled", logger.Component("mfa"))
	return nil
}

func (f *Flow) verifyLogin(ctx context.Context, mfaType, stateToken, code string) (api.Tokens, error) {
	var t api.Tokens
	resp, err := f.Client.VerifyMFALogin(ctx, mfaType, stateToken, code)
	if err != nil {
		return t, err
	}
	if err := api.Expect(resp, http.StatusOK); err != nil {
		return t, err
	}
	if err := resp.Decode(&t); err != nil {
		return t, fmt.Errorf("mfa: decode login tokens: %w", err)
	}
	return t, nil
}

// LoginWithTOTP completa un login con MFA de app: state token + TOTP actual.
func (f *Flow) LoginWithTOTP(ctx context.Context, usernameOrEmail, password, secret string) (api.Tokens, error) {
	state, err := f.Client.StateToken(ctx, usernameOrEmail, password)
	if err != nil {
		return api.Tokens{}, err
	}
	code, err := CodeNow(secret)
	if err != nil {
		return api.Tokens{}, err
	}
	return f.verifyLogin(ctx, api.AuthenticatorAppMFA, state, code)
}

// LoginWithEmailOTP completa un login con MFA por email.
func (f *Flow) LoginWithEmailOTP(ctx context.Context, usernameOrEmail, password, recipient string) (api.Tokens, error) {
	if f.Mail == nil {
		return api.Tokens{}, ErrNoMailbox
	}
	state, err := f.Client.StateToken(ctx, usernameOrEmail, password)
	if err != nil {
		return api.Tokens{}, err
	}
	otp, err := f.Mail.OTP(ctx, recipient, f.LoginEmailSubject)
	if err != nil {
		return api.Tokens{}, err
	}
	return f.verifyLogin(ctx, api.EmailMFA, state, otp)
}
