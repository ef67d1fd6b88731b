package mfa

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Parámetros que usa el servicio IAM: SHA1, paso de 30s, 6 dígitos.
const (
	Period = 30
	Digits = otp.DigitsSix
)

var opts = totp.ValidateOpts{
	Period:    Period,
	Digits:    Digits,
	Algorithm: otp.AlgorithmSHA1,
}

// Code calcula el TOTP de secret (base32, con o sin padding) para t.
// Es puro: dentro del mismo paso de 30s devuelve siempre lo mismo.
func Code(secret string, t time.Time) (string, error) {
	s := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return totp.GenerateCodeCustom(s, t, opts)
}

// CodeNow genera el código para el instante actual; llamarlo justo antes de usarlo.
func CodeNow(secret string) (string, error) {
	return Code(secret, time.Now())
}

// CodeFromQR compone QR → secreto → código actual.
func CodeFromQR(img []byte) (string, error) {
	secret, err := SecretFromQR(img)
	if err != nil {
		return "", err
	}
	return CodeNow(secret)
}
