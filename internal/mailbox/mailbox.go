// Package mailbox obtiene evidencia fuera de banda (tokens de verificación, OTPs)
// desde el buzón de pruebas.
//
// El motor es independiente del protocolo: Store/Session/Folder los implementa
// imapstore (IMAPS real) y memstore (tests).
package mailbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound: se agotó el presupuesto de espera sin mensaje que coincida.
	ErrTokenNotFound = errors.New("mailbox: no matching message within wait budget")
	// ErrTokenPatternNotFound: hubo mensaje pero el texto no contiene el patrón buscado.
	ErrTokenPatternNotFound = errors.New("mailbox: token pattern not found in message")
	ErrUnsupportedMessageFormat = errors.New("mailbox: unsupported message format")
	// ErrFolderNotFound lo retorna Session.OpenFolder para carpetas inexistentes; el motor las saltea.
	ErrFolderNotFound = errors.New("mailbox: folder not found")
)

// Query es la búsqueda conjuntiva que se delega al servidor.
type Query struct {
	Subject   string    // substring
	Recipient string    // To
	Since     time.Time // el servidor puede redondear al día
}

// Envelope identifica un mensaje candidato.
type Envelope struct {
	UID      uint32
	Received time.Time
}

type Store interface {
	Connect(ctx context.Context) (Session, error)
}

type Session interface {
	// OpenFolder abre la carpeta en modo lectura-escritura.
	OpenFolder(ctx context.Context, name string) (Folder, error)
	Close() error
}

type Folder interface {
	// Search devuelve los candidatos en el orden del servidor.
	Search(ctx context.Context, q Query) ([]Envelope, error)
	// Fetch retorna el mensaje RFC 5322 completo sin marcarlo como leído.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	// Delete marca \Deleted y hace expunge. Irreversible.
	Delete(ctx context.Context, uid uint32) error
	Close() error
}

// Criteria describe una búsqueda completa con su presupuesto.
type Criteria struct {
	Folders   []string
	Subject   string
	Recipient string
	// SearchStart cero = momento de inicio de la sesión.
	SearchStart  time.Time
	Skew         time.Duration
	MaxWait      time.Duration
	PollInterval time.Duration
	MarkSeen     bool
	Delete       bool
}

const (
	DefaultMaxWait      = 60 * time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultSkew         = 30 * time.Minute
	DefaultOTPLength    = 6
)

var DefaultFolders = []string{"INBOX", "[Gmail]/Spam"}

// DefaultCriteria: INBOX + Spam, 60s de espera, poll cada 3s, marca leído y borra.
func DefaultCriteria(recipient, subject string) Criteria {
	return Criteria{
		Folders:      append([]string(nil), DefaultFolders...),
		Subject:      subject,
		Recipient:    recipient,
		Skew:         DefaultSkew,
		MaxWait:      DefaultMaxWait,
		PollInterval: DefaultPollInterval,
		MarkSeen:     true,
		Delete:       true,
	}
}
