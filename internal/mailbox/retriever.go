package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"go.uber.org/zap"
)

type Retriever struct {
	store    Store
	defaults Criteria
	otpLen   int
}

// Option ajusta los defaults del Retriever.
type Option func(*Retriever)

func WithFolders(folders ...string) Option {
	return func(r *Retriever) { r.defaults.Folders = folders }
}

func WithBudget(maxWait, poll time.Duration) Option {
	return func(r *Retriever) {
		r.defaults.MaxWait = maxWait
		r.defaults.PollInterval = poll
	}
}

func WithSkew(d time.Duration) Option {
	return func(r *Retriever) { r.defaults.Skew = d }
}

func WithDisposition(markSeen, del bool) Option {
	return func(r *Retriever) {
		r.defaults.MarkSeen = markSeen
		r.defaults.Delete = del
	}
}

func WithOTPLength(n int) Option {
	return func(r *Retriever) { r.otpLen = n }
}

func NewRetriever(store Store, opts ...Option) *Retriever {
	r := &Retriever{store: store, defaults: DefaultCriteria("", ""), otpLen: DefaultOTPLength}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Criteria retorna los defaults del Retriever para recipient/subject.
func (r *Retriever) Criteria(recipient, subject string) Criteria {
	c := r.defaults
	c.Folders = append([]string(nil), r.defaults.Folders...)
	c.Recipient = recipient
	c.Subject = subject
	return c
}

// Token espera el mail y extrae un token UUID.
func (r *Retriever) Token(ctx context.Context, recipient, subject string) (string, error) {
	text, err := r.Fetch(ctx, r.Criteria(recipient, subject))
	if err != nil {
		return "", err
	}
	return MineUUID(text)
}

// OTP espera el mail y extrae un OTP numérico del largo configurado.
func (r *Retriever) OTP(ctx context.Context, recipient, subject string) (string, error) {
	text, err := r.Fetch(ctx, r.Criteria(recipient, subject))
	if err != nil {
		return "", err
	}
	return MineOTP(text, r.otpLen)
}

// Fetch abre una sesión, recorre las carpetas en orden hasta encontrar el mensaje
// y retorna su texto. Entre ciclos duerme PollInterval; ctx cancela la espera.
func (r *Retriever) Fetch(ctx context.Context, c Criteria) (string, error) {
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	log := logger.From(ctx).With(logger.Component("mailbox"), logger.Subject(c.Subject))

	sess, err := r.store.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("mailbox: connect: %w", err)
	}
	defer sess.Close()

	start := time.Now()
	searchStart := c.SearchStart
	if searchStart.IsZero() {
		searchStart = start
	}
	window := searchStart.Add(-c.Skew)
	q := Query{Subject: c.Subject, Recipient: c.Recipient, Since: window}

	for cycle := 1; time.Since(start) < c.MaxWait; cycle++ {
		for _, name := range c.Folders {
			text, found, err := r.searchFolder(ctx, sess, name, q, c)
			if err != nil {
				return "", err
			}
			if found {
				metrics.MailboxCycles.WithLabelValues("found").Inc()
				log.Info("message consumed", logger.Folder(name), logger.Attempt(cycle))
				return text, nil
			}
		}
		metrics.MailboxCycles.WithLabelValues("empty").Inc()
		log.Debug("no matching message yet", logger.Attempt(cycle), zap.Duration("retry_in", c.PollInterval))

		t := time.NewTimer(c.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", fmt.Errorf("%w: subject %q to %q since %s (waited %s)",
		ErrTokenNotFound, c.Subject, c.Recipient, window.Format(time.RFC3339), time.Since(start).Round(time.Millisecond))
}

func (r *Retriever) searchFolder(ctx context.Context, sess Session, name string, q Query, c Criteria) (string, bool, error) {
	f, err := sess.OpenFolder(ctx, name)
	if errors.Is(err, ErrFolderNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mailbox: open %s: %w", name, err)
	}
	defer f.Close()

	envs, err := f.Search(ctx, q)
	if err != nil {
		return "", false, fmt.Errorf("mailbox: search %s: %w", name, err)
	}
	for _, env := range envs {
		// SINCE del servidor es por día; descartar lo anterior a la ventana
		if !env.Received.IsZero() && env.Received.Before(q.Since) {
			continue
		}
		raw, err := f.Fetch(ctx, env.UID)
		if err != nil {
			return "", false, fmt.Errorf("mailbox: fetch %s/%d: %w", name, env.UID, err)
		}
		text, err := ExtractText(raw)
		if err != nil {
			return "", false, err
		}
		if c.MarkSeen {
			if err := f.MarkSeen(ctx, env.UID); err != nil {
				return "", false, fmt.Errorf("mailbox: mark seen: %w", err)
			}
		}
		if c.Delete {
			if err := f.Delete(ctx, env.UID); err != nil {
				return "", false, fmt.Errorf("mailbox: delete: %w", err)
			}
		}
		return text, true, nil
	}
	return "", false, nil
}
