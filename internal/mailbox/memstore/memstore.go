// Package memstore es un mailbox.Store en memoria: lo usan los tests del motor
// y el servidor IAM falso para entregar OTPs.
package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/dropDatabas3/iamprobe/internal/mailbox"
)

type message struct {
	uid      uint32
	to       []string
	subject  string
	received time.Time
	raw      []byte
	seen     bool
}

type Store struct {
	mu      sync.Mutex
	folders map[string][]*message
	nextUID uint32

	connects int
	open     int
	searches map[string]int

	// BeforeSearch corre antes de cada búsqueda (fuera del lock); permite
	// entregar mensajes "tarde" en tests.
	BeforeSearch func(folder string, n int)
}

// New crea un store con las carpetas dadas; las demás no existen.
func New(folders ...string) *Store {
	s := &Store{folders: map[string][]*message{}, searches: map[string]int{}}
	for _, f := range folders {
		s.folders[f] = nil
	}
	return s
}

// Deliver parsea raw (headers To/Subject) y lo agrega a folder.
func (s *Store) Deliver(folder string, raw []byte, received time.Time) (uint32, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("memstore: parse: %w", err)
	}
	subject, _ := mr.Header.Subject()
	addrs, _ := mr.Header.AddressList("To")
	_ = mr.Close()

	m := &message{subject: subject, received: received, raw: append([]byte(nil), raw...)}
	for _, a := range addrs {
		m.to = append(m.to, a.Address)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folder]; !ok {
		return 0, fmt.Errorf("%w: %s", mailbox.ErrFolderNotFound, folder)
	}
	s.nextUID++
	m.uid = s.nextUID
	s.folders[folder] = append(s.folders[folder], m)
	return m.uid, nil
}

// Count retorna la cantidad de mensajes (no borrados) en folder.
func (s *Store) Count(folder string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.folders[folder])
}

// Seen indica si el uid está marcado como leído (false si ya no existe).
func (s *Store) Seen(uid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msgs := range s.folders {
		for _, m := range msgs {
			if m.uid == uid {
				return m.seen
			}
		}
	}
	return false
}

// Searches cuenta búsquedas por carpeta.
func (s *Store) Searches(folder string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches[folder]
}

// Connects y OpenSessions permiten verificar que cada sesión se cierra.
func (s *Store) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *Store) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) Connect(ctx context.Context) (mailbox.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.open++
	return &session{s: s}, nil
}

type session struct {
	s      *Store
	closed bool
}

func (ss *session) OpenFolder(_ context.Context, name string) (mailbox.Folder, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if ss.closed {
		return nil, errors.New("memstore: session closed")
	}
	if _, ok := ss.s.folders[name]; !ok {
		return nil, fmt.Errorf("%w: %s", mailbox.ErrFolderNotFound, name)
	}
	return &folder{s: ss.s, name: name}, nil
}

func (ss *session) Close() error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	if !ss.closed {
		ss.closed = true
		ss.s.open--
	}
	return nil
}

type folder struct {
	s    *Store
	name string
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Search imita IMAP: SINCE compara solo la fecha (UTC), HEADER es substring sin mayúsculas.
func (f *folder) Search(_ context.Context, q mailbox.Query) ([]mailbox.Envelope, error) {
	f.s.mu.Lock()
	f.s.searches[f.name]++
	n := f.s.searches[f.name]
	hook := f.s.BeforeSearch
	f.s.mu.Unlock()
	if hook != nil {
		hook(f.name, n)
	}

	sinceDay := q.Since.UTC().Truncate(24 * time.Hour)

	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []mailbox.Envelope
	for _, m := range f.s.folders[f.name] {
		if q.Subject != "" && !containsFold(m.subject, q.Subject) {
			continue
		}
		if q.Recipient != "" && !containsFold(strings.Join(m.to, ","), q.Recipient) {
			continue
		}
		if !q.Since.IsZero() && m.received.UTC().Before(sinceDay) {
			continue
		}
		out = append(out, mailbox.Envelope{UID: m.uid, Received: m.received})
	}
	return out, nil
}

func (f *folder) find(uid uint32) (*message, int) {
	for i, m := range f.s.folders[f.name] {
		if m.uid == uid {
			return m, i
		}
	}
	return nil, -1
}

func (f *folder) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m, _ := f.find(uid)
	if m == nil {
		return nil, fmt.Errorf("memstore: uid %d not in %s", uid, f.name)
	}
	return append([]byte(nil), m.raw...), nil
}

func (f *folder) MarkSeen(_ context.Context, uid uint32) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if m, _ := f.find(uid); m != nil {
		m.seen = true
	}
	return nil
}

func (f *folder) Delete(_ context.Context, uid uint32) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, i := f.find(uid); i >= 0 {
		msgs := f.s.folders[f.name]
		f.s.folders[f.name] = append(msgs[:i:i], msgs[i+1:]...)
	}
	return nil
}

func (f *folder) Close() error { return nil }
