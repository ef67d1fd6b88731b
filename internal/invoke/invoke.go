// Package invoke ejecuta llamadas bloqueantes bajo un presupuesto de tiempo fijo.
//
// La llamada corre en su propia goroutine; el caller espera como máximo Timeout.
// Vencido el plazo se abandona la espera (no la llamada): el efecto remoto puede
// completarse igual del lado del servidor.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"go.uber.org/zap"
)

// DefaultTimeout es el presupuesto por llamada cuando no se configura otro.
const DefaultTimeout = 30 * time.Second

// ErrTimeout indica que la llamada no terminó dentro del presupuesto. No se reintenta.
var ErrTimeout = errors.New("invoke: call timed out")

type Invoker struct {
	Timeout time.Duration
}

// New crea un Invoker; timeout <= 0 usa DefaultTimeout.
func New(timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{Timeout: timeout}
}

func (i *Invoker) timeout() time.Duration {
	if i == nil || i.Timeout <= 0 {
		return DefaultTimeout
	}
	return i.Timeout
}

// Do ejecuta fn con el presupuesto del Invoker.
func Do[T any](ctx context.Context, inv *Invoker, fn func(context.Context) (T, error)) (T, error) {
	return Call(ctx, inv.timeout(), fn)
}

type result[T any] struct {
	val   T
	err   error
	panic any
}

// Call ejecuta fn en otra goroutine y espera a lo sumo timeout.
// fn recibe el ctx del caller tal cual: el invoker nunca cancela la llamada remota.
// Un panic dentro de fn se re-lanza en la goroutine del caller.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logger.From(ctx).With(logger.Component("invoke"))

	// buffer 1: la goroutine abandonada nunca queda bloqueada al escribir
	done := make(chan result[T], 1)
	start := time.Now()
	go func() {
		var r result[T]
		defer func() {
			if p := recover(); p != nil {
				r.panic = p
			}
			done <- r
		}()
		r.val, r.err = fn(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		elapsed := time.Since(start)
		if r.panic != nil {
			metrics.Calls.WithLabelValues("panic").Inc()
			panic(r.panic)
		}
		metrics.CallLatency.Observe(float64(elapsed.Milliseconds()))
		if r.err != nil {
			metrics.Calls.WithLabelValues("error").Inc()
			log.Debug("call failed", logger.Duration(elapsed), logger.Err(r.err))
			return r.val, r.err
		}
		metrics.Calls.WithLabelValues("ok").Inc()
		return r.val, nil
	case <-timer.C:
		metrics.Calls.WithLabelValues("timeout").Inc()
		log.Error("call abandoned", zap.Duration("budget", timeout))
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		metrics.Calls.WithLabelValues("canceled").Inc()
		return zero, ctx.Err()
	}
}
