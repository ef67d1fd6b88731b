// Package batch parte operaciones bulk según los límites del proveedor.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

// Limits son los máximos por operación del servicio IAM.
type Limits struct {
	UserCreate int `yaml:"user_create"`
	UserDelete int `yaml:"user_delete"`
	UserRead   int `yaml:"user_read"`
	UserUpdate int `yaml:"user_update"`
	RoleCreate int `yaml:"role_create"`
	RoleDelete int `yaml:"role_delete"`
}

func DefaultLimits() Limits {
	return Limits{
		UserCreate: 34,
		UserDelete: 34,
		UserRead:   100,
		UserUpdate: 34,
		RoleCreate: 34,
		RoleDelete: 34,
	}
}

// Partition divide items en ceil(len/size) batches no vacíos, en orden.
// size <= 0 devuelve un único batch.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items[:len(items):len(items)]}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// AlternatingSelector elige el identificador por paridad del índice:
// pares → Primary, impares → Secondary. Así cada corrida ejercita ambos caminos
// de identificación del servidor.
type AlternatingSelector[T any] struct {
	Primary   func(T) string
	Secondary func(T) string
}

func (s AlternatingSelector[T]) Select(i int, item T) string {
	if i%2 == 0 {
		return s.Primary(item)
	}
	return s.Secondary(item)
}

// Identifiers aplica Select a toda la colección.
func (s AlternatingSelector[T]) Identifiers(items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = s.Select(i, it)
	}
	return out
}

// Submitter envía batches verificando el status esperado.
type Submitter[T any] struct {
	// Op etiqueta métricas y logs (ej. "create_users").
	Op     string
	Size   int
	Expect []int
	// Track se llama con cada batch justo ANTES de enviarlo. Un error de Track aborta.
	Track func(ctx context.Context, batch []T) error
	// Concurrency > 1 envía batches en paralelo (errgroup). Default 1.
	Concurrency int
	Limiter     *rate.Limiter
}

// SubmitFunc envía un batch y devuelve la respuesta cruda.
type SubmitFunc[T any] func(ctx context.Context, batch []T) (*api.Response, error)

// Submit envía todos los batches. Un status inesperado es fatal y no se reintenta;
// con Concurrency > 1 los batches en vuelo terminan pero no se lanzan nuevos.
func (s Submitter[T]) Submit(ctx context.Context, items []T, submit SubmitFunc[T]) ([]*api.Response, error) {
	batches := Partition(items, s.Size)
	resps := make([]*api.Response, len(batches))
	log := logger.From(ctx).With(logger.Component("batch"), logger.Op(s.Op))

	g, gctx := errgroup.WithContext(ctx)
	conc := s.Concurrency
	if conc < 1 {
		conc = 1
	}
	g.SetLimit(conc)

	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			// un batch previo falló: no se lanzan nuevos
			if gctx.Err() != nil {
				return nil
			}
			if s.Track != nil {
				if err := s.Track(ctx, b); err != nil {
					return fmt.Errorf("batch %s #%d: track: %w", s.Op, i, err)
				}
			}
			if s.Limiter != nil {
				if err := s.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			resp, err := submit(gctx, b)
			if err != nil {
				metrics.Batches.WithLabelValues(s.Op, "error").Inc()
				return fmt.Errorf("batch %s #%d: %w", s.Op, i, err)
			}
			resps[i] = resp
			if len(s.Expect) > 0 {
				if err := api.Expect(resp, s.Expect...); err != nil {
					metrics.Batches.WithLabelValues(s.Op, "mismatch").Inc()
					return fmt.Errorf("batch %s #%d: %w", s.Op, i, err)
				}
			}
			metrics.Batches.WithLabelValues(s.Op, "ok").Inc()
			log.Debug("batch submitted", logger.Count(len(b)), logger.Status(resp.Status))
			return nil
		})
	}
	return resps, g.Wait()
}
