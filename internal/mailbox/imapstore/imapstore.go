// Package imapstore implementa mailbox.Store sobre IMAPS (emersion/go-imap v1).
package imapstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Timeout aplica al dial y a cada comando.
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type Store struct {
	cfg Config
}

func New(cfg Config) *Store {
	if cfg.Host == "" {
		cfg.Host = "imap.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Store{cfg: cfg}
}

func (s *Store) Connect(ctx context.Context) (mailbox.Session, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	d := &net.Dialer{Timeout: s.cfg.Timeout}
	if dl, ok := ctx.Deadline(); ok {
		d.Deadline = dl
	}

	c, err := client.DialWithDialerTLS(d, addr, &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("imapstore: dial %s: %w", addr, err)
	}
	c.Timeout = s.cfg.Timeout

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imapstore: login: %w", err)
	}
	logger.From(ctx).Debug("imap session opened", logger.Component("imapstore"), logger.String("addr", addr))
	return &session{c: c}, nil
}

type session struct {
	c *client.Client
}

func (s *session) exists(name string) (bool, error) {
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() { done <- s.c.List("", name, ch) }()

	found := false
	for mi := range ch {
		if mi.Name == name {
			found = true
		}
	}
	return found, <-done
}

func (s *session) OpenFolder(_ context.Context, name string) (mailbox.Folder, error) {
	ok, err := s.exists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", mailbox.ErrFolderNotFound, name)
	}
	if _, err := s.c.Select(name, false); err != nil {
		return nil, err
	}
	return &folder{c: s.c}, nil
}

func (s *session) Close() error {
	return s.c.Logout()
}

type folder struct {
	c *client.Client
}

func (f *folder) Search(_ context.Context, q mailbox.Query) ([]mailbox.Envelope, error) {
	crit := imap.NewSearchCriteria()
	if q.Subject != "" {
		crit.Header.Add("Subject", q.Subject)
	}
	if q.Recipient != "" {
		crit.Header.Add("To", q.Recipient)
	}
	if !q.Since.IsZero() {
		crit.Since = q.Since
	}

	uids, err := f.c.UidSearch(crit)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	set := new(imap.SeqSet)
	set.AddNum(uids...)
	ch := make(chan *imap.Message, len(uids))
	if err := f.c.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate}, ch); err != nil {
		return nil, err
	}
	received := make(map[uint32]time.Time, len(uids))
	for m := range ch {
		received[m.Uid] = m.InternalDate
	}

	// orden del SEARCH, no del FETCH
	out := make([]mailbox.Envelope, 0, len(uids))
	for _, uid := range uids {
		out = append(out, mailbox.Envelope{UID: uid, Received: received[uid]})
	}
	return out, nil
}

func (f *folder) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	set := new(imap.SeqSet)
	set.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}

	ch := make(chan *imap.Message, 1)
	if err := f.c.UidFetch(set, []imap.FetchItem{section.FetchItem()}, ch); err != nil {
		return nil, err
	}
	m := <-ch
	if m == nil {
		return nil, fmt.Errorf("imapstore: uid %d vanished", uid)
	}
	body := m.GetBody(section)
	if body == nil {
		return nil, errors.New("imapstore: server returned no body")
	}
	return io.ReadAll(body)
}

func (f *folder) addFlag(uid uint32, flag string) error {
	set := new(imap.SeqSet)
	set.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return f.c.UidStore(set, item, []interface{}{flag}, nil)
}

func (f *folder) MarkSeen(_ context.Context, uid uint32) error {
	return f.addFlag(uid, imap.SeenFlag)
}

func (f *folder) Delete(_ context.Context, uid uint32) error {
	if err := f.addFlag(uid, imap.DeletedFlag); err != nil {
		return err
	}
	return f.c.Expunge(nil)
}

// Close hace CLOSE del mailbox seleccionado (también expunge de lo marcado).
func (f *folder) Close() error {
	return f.c.Close()
}
