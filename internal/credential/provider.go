// Package credential mantiene el token del administrador global.
//
// El token vive en un go-cache con TTL tomado del claim exp. Refresh siempre hace
// un login nuevo y no está protegido por mutex: dos escenarios que refrescan a la
// vez hacen dos logins, lo cual es inocuo.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

// ErrAuthExpired se expone solo cuando la recuperación del 401 no fue posible.
var ErrAuthExpired = errors.New("credential: privileged credential expired and could not be refreshed")

type Provider interface {
	Current(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// LoginFunc obtiene un access token nuevo para la identidad fija.
type LoginFunc func(ctx context.Context) (string, error)

const (
	cacheKey = "admin"
	// margen para no usar un token que vence en vuelo
	expirySkew = 5 * time.Second
)

type LoginProvider struct {
	login     LoginFunc
	cache     *gocache.Cache
	refreshes atomic.Int64
}

func NewLoginProvider(login LoginFunc) *LoginProvider {
	return &LoginProvider{
		login: login,
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Current retorna el token cacheado; si no hay (o venció) hace login.
// Ese login inicial no cuenta como refresh.
func (p *LoginProvider) Current(ctx context.Context) (string, error) {
	if v, ok := p.cache.Get(cacheKey); ok {
		return v.(string), nil
	}
	return p.acquire(ctx)
}

func (p *LoginProvider) Refresh(ctx context.Context) (string, error) {
	p.refreshes.Add(1)
	metrics.CredentialRefreshes.Inc()
	logger.From(ctx).Info("refreshing privileged credential", logger.Component("credential"))
	tok, err := p.acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return tok, nil
}

func (p *LoginProvider) acquire(ctx context.Context) (string, error) {
	tok, err := p.login(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", errors.New("credential: login returned an empty token")
	}
	p.cache.Set(cacheKey, tok, ttlFor(tok, time.Now()))
	return tok, nil
}

// Refreshes cuenta cuántas veces se llamó Refresh.
func (p *LoginProvider) Refreshes() int64 { return p.refreshes.Load() }

// Cached retorna el token vigente sin hacer login.
func (p *LoginProvider) Cached() (string, bool) {
	v, ok := p.cache.Get(cacheKey)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Invalidate descarta el token cacheado (logout del admin).
func (p *LoginProvider) Invalidate() { p.cache.Delete(cacheKey) }

// ttlFor deriva el TTL del claim exp sin verificar firma; tokens opacos no expiran localmente.
func ttlFor(tok string, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return gocache.NoExpiration
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return gocache.NoExpiration
	}
	ttl := exp.Sub(now) - expirySkew
	if ttl <= 0 {
		// ya vencido: que el próximo Current haga login
		return time.Nanosecond
	}
	return ttl
}

// Expiry retorna el exp del token si es un JWT.
func Expiry(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
