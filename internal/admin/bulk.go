package admin

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/batch"
	"github.com/dropDatabas3/iamprobe/internal/tracker"
)

// Bulk crea/borra entidades de prueba en batches del tamaño permitido,
// registrando cada una en el tracker antes de enviar su batch.
type Bulk struct {
	Caller      *Caller
	Set         tracker.Set
	Limits      batch.Limits
	Concurrency int
	// Limiter espacia los batches (nil = sin límite).
	Limiter *rate.Limiter
}

// CreateTestUsers registra por username y crea; exige 200 por batch.
func (b *Bulk) CreateTestUsers(ctx context.Context, users []api.User) error {
	s := batch.Submitter[api.User]{
		Op:          "create_users",
		Size:        b.Limits.UserCreate,
		Expect:      []int{http.StatusOK},
		Concurrency: b.Concurrency,
		Limiter:     b.Limiter,
		Track: func(ctx context.Context, chunk []api.User) error {
			ids := make([]string, len(chunk))
			for i, u := range chunk {
				ids[i] = u.Username
			}
			return b.Set.Add(ctx, tracker.User, ids...)
		},
	}
	_, err := s.Submit(ctx, users, func(ctx context.Context, chunk []api.User) (*api.Response, error) {
		return b.Caller.CreateUsers(ctx, chunk, "")
	})
	return err
}

// CreateTestRoles registra por roleName y crea; exige 200 por batch.
func (b *Bulk) CreateTestRoles(ctx context.Context, roles []api.Role) error {
	s := batch.Submitter[api.Role]{
		Op:          "create_roles",
		Size:        b.Limits.RoleCreate,
		Expect:      []int{http.StatusOK},
		Concurrency: b.Concurrency,
		Limiter:     b.Limiter,
		Track: func(ctx context.Context, chunk []api.Role) error {
			ids := make([]string, len(chunk))
			for i, r := range chunk {
				ids[i] = r.RoleName
			}
			return b.Set.Add(ctx, tracker.Role, ids...)
		},
	}
	_, err := s.Submit(ctx, roles, func(ctx context.Context, chunk []api.Role) (*api.Response, error) {
		return b.Caller.CreateRoles(ctx, chunk, "")
	})
	return err
}

// UserIdentifiers alterna email (índice par) y username (impar).
var UserIdentifiers = batch.AlternatingSelector[api.User]{
	Primary:   func(u api.User) string { return u.Email },
	Secondary: func(u api.User) string { return u.Username },
}

// DeleteUsersAlternating borra users identificándolos alternadamente por email y username.
// Tras cada batch con el status esperado 200 los quita del tracker.
func (b *Bulk) DeleteUsersAlternating(ctx context.Context, users []api.User, hard, leniency string, expect ...int) error {
	if len(expect) == 0 {
		expect = []int{http.StatusOK}
	}
	ids := UserIdentifiers.Identifiers(users)
	byID := make(map[string]string, len(users))
	for i, u := range users {
		byID[ids[i]] = u.Username
	}

	s := batch.Submitter[string]{
		Op:          "delete_users",
		Size:        b.Limits.UserDelete,
		Expect:      expect,
		Concurrency: b.Concurrency,
		Limiter:     b.Limiter,
	}
	_, err := s.Submit(ctx, ids, func(ctx context.Context, chunk []string) (*api.Response, error) {
		resp, err := b.Caller.DeleteUsers(ctx, chunk, hard, leniency)
		if err == nil && resp.Status == http.StatusOK {
			usernames := make([]string, len(chunk))
			for i, id := range chunk {
				usernames[i] = byID[id]
			}
			_ = b.Set.Remove(ctx, tracker.User, usernames...)
		}
		return resp, err
	})
	return err
}
