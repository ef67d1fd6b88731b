// Package probe arma el ciclo de vida de una corrida de escenarios:
// Setup (login admin), creación trackeada de entidades y Teardown.
//
// Teardown borra users y después roles en batches del tamaño de borrado,
// con hard/force + leniency. Cada fallo se loguea y se continúa.
package probe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dropDatabas3/iamprobe/internal/admin"
	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/batch"
	"github.com/dropDatabas3/iamprobe/internal/config"
	"github.com/dropDatabas3/iamprobe/internal/credential"
	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/mailbox/imapstore"
	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/mfa"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"github.com/dropDatabas3/iamprobe/internal/tracker"
)

type Suite struct {
	RunID string

	Client  *api.Client
	Creds   *credential.LoginProvider
	Admin   *admin.Caller
	Tracked tracker.Set
	Bulk    *admin.Bulk
	Limits  batch.Limits

	// Mail queda nil si no hay buzón configurado; MFA solo puede usar
	// entonces los flujos de authenticator app.
	Mail *mailbox.Retriever
	MFA  *mfa.Flow

	cfg        *config.Config
	registerer prometheus.Registerer
	ownsSet    bool
	log        *zap.Logger
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	store      mailbox.Store
	set        tracker.Set
	registerer prometheus.Registerer
}

// WithHTTPClient reemplaza el transporte del cliente REST.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithMailStore usa store en vez de IMAP.
func WithMailStore(s mailbox.Store) Option {
	return func(o *options) { o.store = s }
}

// WithTracker usa un Set provisto por el caller; Teardown no lo cierra.
func WithTracker(s tracker.Set) Option {
	return func(o *options) { o.set = s }
}

func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

func limiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewSuite arma los componentes desde cfg. No hace I/O salvo el ping a Redis
// cuando el tracker es redis.
func NewSuite(cfg *config.Config, opts ...Option) (*Suite, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	runID := cfg.Tracker.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	client := api.New(api.Options{
		BaseURL:  cfg.API.BaseURL,
		BasePath: cfg.API.BasePath,
		DeviceID: cfg.API.DeviceID,
		Timeout:  cfg.API.Timeout,
		HTTP:     o.httpClient,
		Limiter:  limiter(cfg.API.Rate.RPS, cfg.API.Rate.Burst),
	})

	set, owns := o.set, false
	if set == nil {
		var err error
		set, err = tracker.New(tracker.Config{
			Driver:   cfg.Tracker.Kind,
			Addr:     cfg.Tracker.Redis.Addr,
			Password: cfg.Tracker.Redis.Password,
			DB:       cfg.Tracker.Redis.DB,
			Prefix:   cfg.Tracker.Redis.Prefix,
			RunID:    runID,
		})
		if err != nil {
			return nil, fmt.Errorf("probe: tracker: %w", err)
		}
		owns = true
	}

	creds := credential.NewLoginProvider(admin.AdminLogin(client, cfg.Admin.Username, cfg.Admin.Password))
	caller := admin.NewCaller(client, creds)
	limits := batch.Limits{
		UserCreate: cfg.Batch.UserCreate,
		UserDelete: cfg.Batch.UserDelete,
		UserRead:   cfg.Batch.UserRead,
		UserUpdate: cfg.Batch.UserUpdate,
		RoleCreate: cfg.Batch.RoleCreate,
		RoleDelete: cfg.Batch.RoleDelete,
	}

	s := &Suite{
		RunID:   runID,
		Client:  client,
		Creds:   creds,
		Admin:   caller,
		Tracked: set,
		Limits:  limits,
		Bulk: &admin.Bulk{
			Caller:      caller,
			Set:         set,
			Limits:      limits,
			Concurrency: cfg.Batch.Concurrency,
			Limiter:     limiter(cfg.Batch.RPS, 1),
		},
		cfg:        cfg,
		registerer: o.registerer,
		ownsSet:    owns,
		log:        logger.With(logger.RunID(runID), logger.Component("suite")),
	}

	store := o.store
	if store == nil && cfg.Mail.Address != "" {
		store = imapstore.New(imapstore.Config{
			Host:     cfg.Mail.IMAPHost,
			Port:     cfg.Mail.IMAPPort,
			Username: cfg.Mail.Address,
			Password: cfg.Mail.Password,
			Timeout:  cfg.Mail.Timeout,
		})
	}
	if store != nil {
		s.Mail = NewRetriever(cfg, store)
	}
	s.MFA = mfa.NewFlow(client, s.Mail)
	return s, nil
}

// NewRetriever aplica la sección mail de cfg sobre store.
func NewRetriever(cfg *config.Config, store mailbox.Store) *mailbox.Retriever {
	opts := []mailbox.Option{
		mailbox.WithFolders(cfg.Mail.Folders...),
		mailbox.WithBudget(cfg.Mail.MaxWait, cfg.Mail.PollInterval),
		mailbox.WithSkew(cfg.Mail.Skew),
		mailbox.WithOTPLength(cfg.Mail.OTPLength),
	}
	if cfg.Mail.MarkSeen != nil && cfg.Mail.Delete != nil {
		opts = append(opts, mailbox.WithDisposition(*cfg.Mail.MarkSeen, *cfg.Mail.Delete))
	}
	return mailbox.NewRetriever(store, opts...)
}

func (s *Suite) Config() *config.Config { return s.cfg }

// Context agrega el logger de la corrida a ctx.
func (s *Suite) Context(ctx context.Context) context.Context {
	return logger.ToContext(ctx, s.log)
}

// Setup registra métricas y hace el login admin inicial.
func (s *Suite) Setup(ctx context.Context) error {
	ctx = s.Context(ctx)
	if err := metrics.Register(s.registerer); err != nil {
		return fmt.Errorf("probe: metrics: %w", err)
	}
	if err := s.cfg.RequireAdmin(); err != nil {
		return err
	}
	if _, err := s.Creds.Current(ctx); err != nil {
		return fmt.Errorf("probe: admin login: %w", err)
	}
	s.log.Info("suite ready", logger.String("base_url", s.Client.BaseURL()))
	return nil
}

// CreateUsers crea users trackeados (cada batch se registra antes de enviarse).
func (s *Suite) CreateUsers(ctx context.Context, users ...api.User) error {
	return s.Bulk.CreateTestUsers(s.Context(ctx), users)
}

func (s *Suite) CreateRoles(ctx context.Context, roles ...api.Role) error {
	return s.Bulk.CreateTestRoles(s.Context(ctx), roles)
}

// Track registra entidades creadas por otra vía (ej. /user/register).
func (s *Suite) Track(ctx context.Context, kind tracker.Kind, ids ...string) error {
	return s.Tracked.Add(ctx, kind, ids...)
}

// Teardown limpia lo trackeado, vacía el set y cierra la sesión admin.
// Nunca falla: los errores quedan en el log y en el reporte.
func (s *Suite) Teardown(ctx context.Context) admin.CleanupReport {
	ctx = s.Context(ctx)
	rep := admin.Cleanup(ctx, s.Admin, s.Tracked, s.Limits)

	if err := s.Tracked.Clear(ctx); err != nil {
		s.log.Warn("tracker clear failed", logger.Err(err))
	}
	s.logout(ctx)
	s.Creds.Invalidate()

	if s.ownsSet {
		if err := s.Tracked.Close(); err != nil {
			s.log.Warn("tracker close failed", logger.Err(err))
		}
	}
	return rep
}

// logout es best-effort: sin token cacheado no hace login solo para desloguear.
func (s *Suite) logout(ctx context.Context) {
	tok, ok := s.Creds.Cached()
	if !ok {
		return
	}
	resp, err := s.Client.Logout(ctx, tok)
	if err != nil {
		s.log.Warn("admin logout failed", logger.Err(err))
		return
	}
	if resp.Status != http.StatusOK {
		s.log.Warn("admin logout rejected", logger.Status(resp.Status))
	}
}
