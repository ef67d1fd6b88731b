// Package tracker registra cada entidad creada durante una corrida para poder
// borrarla en el teardown.
//
// Soporta:
//   - Memory (in-process, una sola corrida)
//   - Redis (compartido entre procesos; permite `iamprobe cleanup` de una corrida caída)
//
// Add nunca se bloquea por un Members concurrente.
package tracker

import (
	"context"
	"errors"
	"fmt"
)

// Kind es el tipo de entidad trackeada.
type Kind string

const (
	User Kind = "user"
	Role Kind = "role"
)

// Set es el Tracked Entity Set.
type Set interface {
	// Add registra ids; agregar uno existente no es error.
	Add(ctx context.Context, kind Kind, ids ...string) error

	// Remove quita ids tras un borrado confirmado.
	Remove(ctx context.Context, kind Kind, ids ...string) error

	// Members retorna un snapshot; el orden no está garantizado.
	Members(ctx context.Context, kind Kind) ([]string, error)

	Len(ctx context.Context, kind Kind) (int, error)

	// Clear vacía todos los kinds.
	Clear(ctx context.Context) error

	Close() error
}

// Config configuración para crear un Set.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
	RunID    string // namespace de la corrida dentro de Redis
}

var ErrUnknownDriver = errors.New("tracker: unknown driver")

// New crea un Set según cfg.Driver.
func New(cfg Config) (Set, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
