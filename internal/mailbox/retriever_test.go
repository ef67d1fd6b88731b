package mailbox_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/mailbox/memstore"
)

const (
	inbox = "INBOX"
	spam  = "[Gmail]/Spam"
	rcpt  = "qa@x.test"
)

func rawMail(to, subject, body string) []byte {
	return []byte(strings.ReplaceAll(fmt.Sprintf(
		"From: iam@x.test\nTo: %s\nSubject: %s\nContent-Type: text/plain; charset=utf-8\n\n%s\n",
		to, subject, body), "\n", "\r\n"))
}

func fastRetriever(s mailbox.Store, maxWait time.Duration) *mailbox.Retriever {
	return mailbox.NewRetriever(s,
		mailbox.WithFolders(inbox, spam),
		mailbox.WithBudget(maxWait, 20*time.Millisecond),
	)
}

func TestRetriever_SecondFolderThirdCycle(t *testing.T) {
	store := memstore.New(inbox, spam)
	var delivered atomic.Bool
	store.BeforeSearch = func(folder string, n int) {
		if folder == spam && n == 3 && !delivered.Swap(true) {
			_, err := store.Deliver(spam, rawMail(rcpt, "Email verification", "token 3f2b8c1e-9d4a-4e6f-8a7b-1c2d3e4f5a6b"), time.Now())
			assert.NoError(t, err)
		}
	}

	r := fastRetriever(store, 5*time.Second)
	tok, err := r.Token(context.Background(), rcpt, "Email verification")
	require.NoError(t, err)
	assert.Equal(t, "3f2b8c1e-9d4a-4e6f-8a7b-1c2d3e4f5a6b", tok)

	// match en el ciclo 3: no hubo un cuarto ciclo
	assert.Equal(t, 3, store.Searches(inbox))
	assert.Equal(t, 3, store.Searches(spam))
	assert.Equal(t, 0, store.Count(spam), "consumed message is expunged")
	assert.Equal(t, 1, store.Connects(), "one connection per session")
	assert.Equal(t, 0, store.OpenSessions())
}

func TestRetriever_TimesOutAfterFullBudget(t *testing.T) {
	store := memstore.New(inbox, spam)
	budget := 150 * time.Millisecond
	r := fastRetriever(store, budget)

	start := time.Now()
	_, err := r.OTP(context.Background(), rcpt, "Login OTP")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, mailbox.ErrTokenNotFound)
	assert.Contains(t, err.Error(), "Login OTP")
	assert.GreaterOrEqual(t, elapsed, budget)
	assert.Less(t, elapsed, budget+time.Second)
	assert.Equal(t, 0, store.OpenSessions())
}

func TestRetriever_SkipsMissingFoldersAndStaleMessages(t *testing.T) {
	store := memstore.New(inbox) // sin carpeta de spam
	now := time.Now()

	// mismo día (pasa el SINCE del servidor) pero antes de la ventana
	_, err := store.Deliver(inbox, rawMail(rcpt, "Login OTP", "old 111111"), now.Add(-2*time.Hour))
	require.NoError(t, err)
	uid, err := store.Deliver(inbox, rawMail(rcpt, "Login OTP", "fresh 222222"), now)
	require.NoError(t, err)

	r := mailbox.NewRetriever(store,
		mailbox.WithFolders(spam, inbox),
		mailbox.WithBudget(time.Second, 10*time.Millisecond),
		mailbox.WithDisposition(true, false),
	)
	otp, err := r.OTP(context.Background(), rcpt, "login otp")
	require.NoError(t, err)
	assert.Equal(t, "222222", otp)
	assert.True(t, store.Seen(uid))
	assert.Equal(t, 2, store.Count(inbox), "delete disabled")
}

func TestRetriever_RecipientMustMatch(t *testing.T) {
	store := memstore.New(inbox)
	_, err := store.Deliver(inbox, rawMail("other@x.test", "Login OTP", "123456"), time.Now())
	require.NoError(t, err)

	_, err = fastRetriever(store, 80*time.Millisecond).OTP(context.Background(), rcpt, "Login OTP")
	assert.ErrorIs(t, err, mailbox.ErrTokenNotFound)
}

func TestRetriever_PatternMissingIsDistinct(t *testing.T) {
	store := memstore.New(inbox)
	_, err := store.Deliver(inbox, rawMail(rcpt, "Email verification", "no token here"), time.Now())
	require.NoError(t, err)

	_, err = fastRetriever(store, time.Second).Token(context.Background(), rcpt, "Email verification")
	require.ErrorIs(t, err, mailbox.ErrTokenPatternNotFound)
	assert.NotErrorIs(t, err, mailbox.ErrTokenNotFound)
}

func TestRetriever_ContextCancelsSleep(t *testing.T) {
	store := memstore.New(inbox)
	r := mailbox.NewRetriever(store, mailbox.WithFolders(inbox), mailbox.WithBudget(time.Minute, 10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := r.Token(ctx, rcpt, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, store.OpenSessions())
}
