package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Set {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := New(Config{Driver: "redis", Addr: mr.Addr(), RunID: "run-1"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return map[string]Set{"memory": NewMemory(), "redis": rs}
}

func TestSet_AddRemoveMembers(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Add(ctx, User, "a@x.test", "b@x.test", "a@x.test"))
			require.NoError(t, s.Add(ctx, Role, "ROLE_QA"))

			users, err := s.Members(ctx, User)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a@x.test", "b@x.test"}, users)

			require.NoError(t, s.Remove(ctx, User, "a@x.test"))
			n, err := s.Len(ctx, User)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			require.NoError(t, s.Clear(ctx))
			n, _ = s.Len(ctx, User)
			assert.Zero(t, n)
			n, _ = s.Len(ctx, Role)
			assert.Zero(t, n)
		})
	}
}

func TestSet_ConcurrentInsertDuringIteration(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						assert.NoError(t, s.Add(ctx, User, fmt.Sprintf("u-%d-%d", w, i)))
						_, err := s.Members(ctx, User)
						assert.NoError(t, err)
					}
				}(w)
			}
			wg.Wait()

			n, err := s.Len(ctx, User)
			require.NoError(t, err)
			assert.Equal(t, 400, n)
		})
	}
}

func TestRedis_KeysAreRunScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(Config{Addr: mr.Addr(), Prefix: "qa", RunID: "r42"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Add(context.Background(), Role, "ROLE_X"))
	ok, err := mr.SIsMember("qa:r42:role", "ROLE_X")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
