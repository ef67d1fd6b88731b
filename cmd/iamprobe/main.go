package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/iamprobe/internal/config"
	"github.com/dropDatabas3/iamprobe/internal/credential"
	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/mailbox/imapstore"
	"github.com/dropDatabas3/iamprobe/internal/metrics"
	"github.com/dropDatabas3/iamprobe/internal/mfa"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"github.com/dropDatabas3/iamprobe/internal/probe"
)

type cli struct {
	cfg       *config.Config
	OutFormat string // "json" | "text"
}

// print en text imprime los valores en orden; en json un objeto con las claves.
func (c *cli) print(kv ...any) {
	if c.OutFormat == "json" {
		m := make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			m[fmt.Sprint(kv[i])] = kv[i+1]
		}
		p, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(p))
		return
	}
	for i := 1; i < len(kv); i += 2 {
		fmt.Printf("%s=%v\n", kv[i-1], kv[i])
	}
}

func (c *cli) retriever() (*mailbox.Retriever, error) {
	if err := c.cfg.RequireMailbox(); err != nil {
		return nil, err
	}
	store := imapstore.New(imapstore.Config{
		Host:     c.cfg.Mail.IMAPHost,
		Port:     c.cfg.Mail.IMAPPort,
		Username: c.cfg.Mail.Address,
		Password: c.cfg.Mail.Password,
		Timeout:  c.cfg.Mail.Timeout,
	})
	return probe.NewRetriever(c.cfg, store), nil
}

func (c *cli) prober() *mailbox.Prober {
	s := c.cfg.Mail.SMTP
	p := &mailbox.Prober{
		Host:               s.Host,
		Port:               s.Port,
		From:               s.From,
		User:               s.Username,
		Pass:               s.Password,
		TLSMode:            s.TLS,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}
	// por defecto el buzón de pruebas se manda a sí mismo
	if p.User == "" {
		p.User, p.Pass = c.cfg.Mail.Address, c.cfg.Mail.Password
	}
	if p.From == "" {
		p.From = c.cfg.Mail.Address
	}
	return p
}

func serveMetrics(addr string) {
	if err := metrics.Register(nil); err != nil {
		logger.L().Warn("metrics register failed", logger.Err(err))
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("metrics server failed", logger.Err(err))
		}
	}()
	logger.L().Info("metrics exposed", logger.String("addr", addr))
}

func main() {
	var (
		configPath  = envOr("IAMPROBE_CONFIG", "")
		envFile     = envOr("IAMPROBE_ENV_FILE", ".env")
		out         = envOr("IAMPROBE_OUT", "text")
		metricsAddr string
	)
	c := &cli{}

	root := &cobra.Command{
		Use:           "iamprobe",
		Short:         "Utilidades del cliente e2e del servicio IAM (buzón, TOTP, cleanup)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return fmt.Errorf("env file %s: %w", envFile, err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, RunID: cfg.Tracker.RunID})
			if cfg.Metrics.Addr != "" {
				serveMetrics(cfg.Metrics.Addr)
			}
			c.cfg, c.OutFormat = cfg, out
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Archivo YAML de configuración (env IAMPROBE_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "Archivo .env a cargar si existe (env IAMPROBE_ENV_FILE)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Expone /metrics en esta dirección (ej. :9100)")

	// ---- mail ----
	mailCmd := &cobra.Command{Use: "mail", Short: "Lectura del buzón de pruebas (IMAP)"}

	var mTo, mSubject string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Espera un mail y extrae el primer UUID",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.retriever()
			if err != nil {
				return err
			}
			tok, err := r.Token(cmd.Context(), recipientOr(mTo, c.cfg), mSubject)
			if err != nil {
				return err
			}
			c.print("token", tok)
			return nil
		},
	}
	otpCmd := &cobra.Command{
		Use:   "otp",
		Short: "Espera un mail y extrae el OTP numérico",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.retriever()
			if err != nil {
				return err
			}
			otp, err := r.OTP(cmd.Context(), recipientOr(mTo, c.cfg), mSubject)
			if err != nil {
				return err
			}
			c.print("otp", otp)
			return nil
		},
	}
	for _, sc := range []*cobra.Command{tokenCmd, otpCmd} {
		sc.Flags().StringVar(&mTo, "to", "", "Destinatario (default TEST_EMAIL)")
		sc.Flags().StringVar(&mSubject, "subject", "", "Subject a buscar (contiene)")
		_ = sc.MarkFlagRequired("subject")
	}

	var probeTo string
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Envía un mail con un UUID por SMTP y lo recupera por IMAP",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.retriever()
			if err != nil {
				return err
			}
			to := probeTo
			if to == "" {
				to = mailbox.PlusAddress(c.cfg.Mail.Address, "probe-"+uuid.NewString()[:8])
			}
			p := c.prober()
			pr := p.BuildProbe(to)
			start := time.Now()
			if err := p.Send(pr); err != nil {
				return err
			}
			got, err := r.Token(cmd.Context(), to, pr.Subject)
			if err != nil {
				return err
			}
			if got != pr.Token {
				return fmt.Errorf("probe: token mismatch: sent %s, read %s", pr.Token, got)
			}
			c.print("to", to, "token", got, "elapsed", time.Since(start).Round(time.Millisecond).String())
			return nil
		},
	}
	probeCmd.Flags().StringVar(&probeTo, "to", "", "Destinatario (default TEST_EMAIL con +tag)")

	mailCmd.AddCommand(tokenCmd, otpCmd, probeCmd)

	// ---- totp ----
	totpCmd := &cobra.Command{Use: "totp", Short: "Códigos TOTP (RFC 6238, SHA1, 6 dígitos, 30s)"}

	var secret string
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Código actual para un secreto base32",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := mfa.CodeNow(secret)
			if err != nil {
				return err
			}
			c.print("code", code)
			return nil
		},
	}
	codeCmd.Flags().StringVar(&secret, "secret", "", "Secreto base32")
	_ = codeCmd.MarkFlagRequired("secret")

	qrCmd := &cobra.Command{
		Use:   "qr <imagen>",
		Short: "Decodifica un QR otpauth:// y muestra secreto y código actual",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sec, err := mfa.SecretFromQR(img)
			if err != nil {
				return err
			}
			code, err := mfa.CodeNow(sec)
			if err != nil {
				return err
			}
			c.print("secret", sec, "code", code)
			return nil
		},
	}
	totpCmd.AddCommand(codeCmd, qrCmd)

	// ---- cleanup ----
	var runID string
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Borra las entidades trackeadas de una corrida (tracker redis)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID != "" {
				c.cfg.Tracker.RunID = runID
			}
			if c.cfg.Tracker.Kind != "redis" || c.cfg.Tracker.RunID == "" {
				return fmt.Errorf("cleanup requiere tracker redis y --run-id")
			}
			s, err := probe.NewSuite(c.cfg)
			if err != nil {
				return err
			}
			if err := s.Setup(cmd.Context()); err != nil {
				return err
			}
			rep := s.Teardown(cmd.Context())
			c.print("run_id", s.RunID, "users_deleted", rep.UsersDeleted,
				"roles_deleted", rep.RolesDeleted, "failures", rep.Failures)
			return nil
		},
	}
	cleanupCmd.Flags().StringVar(&runID, "run-id", "", "Run ID de la corrida a limpiar (env TRACKER_RUN_ID)")

	// ---- login ----
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Login del admin global; muestra el vencimiento del token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := probe.NewSuite(c.cfg)
			if err != nil {
				return err
			}
			defer s.Tracked.Close()
			if err := s.Setup(cmd.Context()); err != nil {
				return err
			}
			tok, _ := s.Creds.Cached()
			exp, ok := credential.Expiry(tok)
			if !ok {
				c.print("base_url", s.Client.BaseURL(), "expires", "unknown (opaque token)")
				return nil
			}
			c.print("base_url", s.Client.BaseURL(), "expires", exp.Format(time.RFC3339),
				"remaining", time.Until(exp).Round(time.Second).String())
			return nil
		},
	}

	root.AddCommand(mailCmd, totpCmd, cleanupCmd, loginCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}

func recipientOr(to string, cfg *config.Config) string {
	if to != "" {
		return to
	}
	return cfg.Mail.Address
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
