package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// ExtractText retorna el texto del mensaje: text/plain directo; en multipart
// el primer text/plain, si no hay, el primer text/html pasado a texto.
func ExtractText(raw []byte) (string, error) {
	e, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return "", fmt.Errorf("mailbox: parse message: %w", err)
	}

	if mr := e.MultipartReader(); mr != nil {
		plain, html, err := walk(mr)
		if err != nil {
			return "", err
		}
		switch {
		case plain != nil:
			return *plain, nil
		case html != nil:
			return HTMLToText(*html)
		}
		return "", ErrUnsupportedMessageFormat
	}

	mt, _, _ := e.Header.ContentType()
	switch mt {
	case "text/plain", "":
		return readBody(e)
	case "text/html":
		s, err := readBody(e)
		if err != nil {
			return "", err
		}
		return HTMLToText(s)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMessageFormat, mt)
}

// walk recorre partes (incluye multiparts anidados) y junta el primer plain y el primer html.
func walk(mr message.MultipartReader) (plain, html *string, err error) {
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return plain, html, nil
		}
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return plain, html, fmt.Errorf("mailbox: read part: %w", err)
		}
		if nested := p.MultipartReader(); nested != nil {
			np, nh, err := walk(nested)
			if err != nil {
				return plain, html, err
			}
			if plain == nil {
				plain = np
			}
			if html == nil {
				html = nh
			}
			continue
		}
		mt, _, _ := p.Header.ContentType()
		switch {
		case mt == "text/plain" && plain == nil:
			s, err := readBody(p)
			if err != nil {
				return plain, html, err
			}
			plain = &s
		case mt == "text/html" && html == nil:
			s, err := readBody(p)
			if err != nil {
				return plain, html, err
			}
			html = &s
		}
	}
}

func readBody(e *message.Entity) (string, error) {
	b, err := io.ReadAll(e.Body)
	if err != nil {
		return "", fmt.Errorf("mailbox: read body: %w", err)
	}
	return string(b), nil
}

// HTMLToText extrae el texto visible con whitespace normalizado.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("mailbox: parse html: %w", err)
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
