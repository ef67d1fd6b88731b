// Package mfa recupera el secreto TOTP desde el QR de enrolamiento y calcula
// los códigos que un usuario leería de su app autenticadora.
package mfa

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

var (
	ErrQRNotFound         = errors.New("mfa: no QR code found in image")
	ErrSecretParamMissing = errors.New("mfa: provisioning URI has no secret parameter")
)

// Decoder decodifica QRs con TRY_HARDER. Los readers salen de un pool y se
// resetean después de cada intento, falle o no.
type Decoder struct {
	readers sync.Pool
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewDecoder() *Decoder {
	return &Decoder{
		readers: sync.Pool{New: func() any { return qrcode.NewQRCodeReader() }},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

var defaultDecoder = NewDecoder()

// Decode retorna el texto del QR contenido en img (PNG, JPEG o GIF).
func (d *Decoder) Decode(img []byte) (string, error) {
	pic, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRNotFound, err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(pic)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRNotFound, err)
	}

	r := d.readers.Get().(gozxing.Reader)
	defer func() {
		r.Reset()
		d.readers.Put(r)
	}()

	res, err := r.Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRNotFound, err)
	}
	return res.GetText(), nil
}

// DecodeQR usa el Decoder compartido del paquete.
func DecodeQR(img []byte) (string, error) {
	return defaultDecoder.Decode(img)
}

// SecretFromURI extrae el parámetro secret tal cual, sin percent-decoding
// (el alfabeto base32 es URL-safe).
func SecretFromURI(uri string) (string, error) {
	q := uri
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		q = uri[i+1:]
	}
	for _, param := range strings.Split(q, "&") {
		if v, ok := strings.CutPrefix(param, "secret="); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrSecretParamMissing
}

// SecretFromQR compone Decode + SecretFromURI.
func SecretFromQR(img []byte) (string, error) {
	uri, err := DecodeQR(img)
	if err != nil {
		return "", err
	}
	return SecretFromURI(uri)
}
