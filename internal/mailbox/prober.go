package mailbox

import (
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	mail "github.com/go-mail/mail"
	"github.com/google/uuid"

	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

// Prober envía un mensaje de prueba con un UUID al buzón, para validar
// credenciales IMAP y el pipeline de extracción sin depender del servicio IAM.
type Prober struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// Probe es el mensaje armado y el token que lleva.
type Probe struct {
	Token   string
	Subject string
	To      string
	Message *mail.Message
}

// BuildProbe arma un multipart/alternative (texto + html) con un UUID nuevo.
func (p *Prober) BuildProbe(to string) Probe {
	tok := uuid.NewString()
	subject := "iamprobe mailbox check " + tok[:8]

	m := mail.NewMessage()
	m.SetHeader("From", p.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", "Your verification token is "+tok+"\n")
	m.AddAlternative("text/html", "<html><body><p>Your verification token is <b>"+html.EscapeString(tok)+"</b></p></body></html>")

	return Probe{Token: tok, Subject: subject, To: to, Message: m}
}

// Send entrega el probe vía SMTP.
func (p *Prober) Send(probe Probe) error {
	log := logger.L().With(
		logger.Component("prober"),
		logger.String("host", p.Host),
		logger.Int("port", p.Port),
	)

	d := mail.NewDialer(p.Host, p.Port, p.User, p.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         p.Host,
		InsecureSkipVerify: p.InsecureSkipVerify,
	}
	switch p.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	if err := d.DialAndSend(probe.Message); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("probe sent", logger.Subject(probe.Subject))
	return nil
}

// PlusAddress agrega +tag a la parte local: qa@x.test → qa+tag@x.test.
// Gmail entrega ambas al mismo buzón.
func PlusAddress(base, tag string) string {
	at := strings.LastIndex(base, "@")
	tag = strings.TrimSpace(tag)
	if at <= 0 || tag == "" {
		return base
	}
	local, domain := base[:at], base[at:]
	if i := strings.Index(local, "+"); i >= 0 {
		local = local[:i]
	}
	return local + "+" + tag + domain
}
