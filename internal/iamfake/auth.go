package iamfake

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/big"
	"net/http"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/dropDatabas3/iamprobe/internal/api"
)

type ctxKey struct{}

func (s *Server) issue(username string) (map[string]any, error) {
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.opts.TokenTTL).Unix(),
	}).SignedString(s.signer)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[tok] = session{username: username, gen: s.gen}
	s.mu.Unlock()
	return map[string]any{
		"access_token":       tok,
		"refresh_token":      uuid.NewString(),
		"expires_in_seconds": int(s.opts.TokenTTL.Seconds()),
		"token_type":         "Bearer",
	}, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// authed exige un access token vigente de la generación actual.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		s.mu.Lock()
		sess, ok := s.sessions[tok]
		valid := ok && !s.rejectAll && sess.gen == s.gen
		s.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess.username)))
	}
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		if current(r) != s.opts.AdminUsername {
			writeError(w, http.StatusForbidden, "Access Denied")
			return
		}
		next(w, r)
	})
}

func current(r *http.Request) string {
	v, _ := r.Context().Value(ctxKey{}).(string)
	return v
}

// lookup busca por username o email. Requiere s.mu tomado.
func (s *Server) lookup(id string) *user {
	if u, ok := s.users[id]; ok {
		return u
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, id) {
			return u
		}
	}
	return nil
}

func otp6() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// sendMail entrega un mail con el OTP al buzón en memoria.
func (s *Server) sendMail(to, subject, otp string) error {
	if s.opts.Mail == nil {
		return fmt.Errorf("iamfake: no mail store configured")
	}
	m := mail.NewMessage()
	m.SetHeader("From", s.opts.MailFrom)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", "Your Otp is "+otp+". It is valid for 5 minutes.")
	m.AddAlternative("text/html", "<p>Your Otp is <b>"+otp+"</b>.</p><p>It is valid for 5 minutes.</p>")

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return err
	}
	_, err := s.opts.Mail.Deliver(s.opts.MailFolder, buf.Bytes(), time.Now())
	return err
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, pw := q.Get("usernameOrEmail"), q.Get("password")

	s.mu.Lock()
	u := s.lookup(id)
	ok := u != nil && u.Password == pw
	var username, email string
	var app, byEmail bool
	if ok {
		username, email, app, byEmail = u.Username, u.Email, u.appMFA, u.emailMFA
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	if app || byEmail {
		st := state{username: username, mfaType: api.AuthenticatorAppMFA}
		if byEmail && !app {
			st.mfaType = api.EmailMFA
			st.otp = otp6()
			if err := s.sendMail(email, s.opts.LoginEmailSubject, st.otp); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		stateToken := uuid.NewString()
		s.mu.Lock()
		s.states[stateToken] = st
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"message":     "Mfa is enabled",
			"state_token": stateToken,
		})
		return
	}

	out, err := s.issue(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.sessions, bearer(r))
	s.mu.Unlock()
	writeMessage(w, "Logout successful")
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	me := current(r)
	s.mu.Lock()
	for tok, sess := range s.sessions {
		if sess.username == me {
			delete(s.sessions, tok)
		}
	}
	s.mu.Unlock()
	writeMessage(w, "Logout from all devices successful")
}

func (s *Server) requestToggle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mfaType, toggle := q.Get("type"), q.Get("toggle")
	if toggle != api.Enable {
		writeError(w, http.StatusBadRequest, "Unsupported toggle")
		return
	}

	s.mu.Lock()
	u := s.users[current(r)]
	if u == nil {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if (mfaType == api.AuthenticatorAppMFA && u.appMFA) || (mfaType == api.EmailMFA && u.emailMFA) {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Mfa is already enabled")
		return
	}
	email := u.Email
	s.mu.Unlock()

	switch mfaType {
	case api.AuthenticatorAppMFA:
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "iamfake", AccountName: email})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		img, err := qrPNG(key.Image)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.mu.Lock()
		u.totpSecret = key.Secret()
		s.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)

	case api.EmailMFA:
		otp := otp6()
		if err := s.sendMail(email, s.opts.EnableEmailSubject, otp); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.mu.Lock()
		u.emailOTP = otp
		s.mu.Unlock()
		writeMessage(w, "Otp sent to your registered email address")

	default:
		writeError(w, http.StatusBadRequest, "Unsupported Mfa type")
	}
}

// qrPNG agrega zona de silencio alrededor del QR generado.
func qrPNG(render func(w, h int) (image.Image, error)) ([]byte, error) {
	code, err := render(240, 240)
	if err != nil {
		return nil, err
	}
	const margin = 24
	canvas := image.NewGray(image.Rect(0, 0, 240+2*margin, 240+2*margin))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, code.Bounds().Add(image.Pt(margin, margin)), code, code.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) verifyToggle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mfaType, code := q.Get("type"), q.Get("otpTotp")

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[current(r)]
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	switch mfaType {
	case api.AuthenticatorAppMFA:
		if u.appMFA {
			writeError(w, http.StatusBadRequest, "Mfa is already enabled")
			return
		}
		if u.totpSecret == "" || !totp.Validate(code, u.totpSecret) {
			writeError(w, http.StatusBadRequest, "Invalid Otp/Totp")
			return
		}
		u.appMFA = true
		writeMessage(w, "Authenticator app Mfa enabled successfully")
	case api.EmailMFA:
		if u.emailMFA {
			writeError(w, http.StatusBadRequest, "Mfa is already enabled")
			return
		}
		if u.emailOTP == "" || code != u.emailOTP {
			writeError(w, http.StatusBadRequest, "Invalid Otp/Totp")
			return
		}
		u.emailMFA = true
		u.emailOTP = ""
		writeMessage(w, "Email Mfa enabled successfully")
	default:
		writeError(w, http.StatusBadRequest, "Unsupported Mfa type")
	}
}

func (s *Server) verifyLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mfaType, stateToken, code := q.Get("type"), q.Get("stateToken"), q.Get("otpTotp")

	s.mu.Lock()
	st, ok := s.states[stateToken]
	var valid bool
	if ok && st.mfaType == mfaType {
		switch mfaType {
		case api.AuthenticatorAppMFA:
			valid = totp.Validate(code, s.users[st.username].totpSecret)
		case api.EmailMFA:
			valid = code == st.otp
		}
	}
	if valid {
		delete(s.states, stateToken)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid state token")
		return
	}
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid Otp/Totp")
		return
	}
	out, err := s.issue(st.username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}
