package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log struct {
		// dev | prod
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	API struct {
		BaseURL  string        `yaml:"base_url"`
		BasePath string        `yaml:"base_path"`
		DeviceID string        `yaml:"device_id"`
		Timeout  time.Duration `yaml:"timeout"` // presupuesto del invoker por llamada
		Rate     struct {
			RPS   float64 `yaml:"rps"` // 0 = sin límite
			Burst int     `yaml:"burst"`
		} `yaml:"rate"`
	} `yaml:"api"`

	// Identidad administrativa fija usada para setup/teardown.
	Admin struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"admin"`

	Mail struct {
		Address      string        `yaml:"address"`  // buzón de pruebas (TEST_EMAIL)
		Password     string        `yaml:"password"` // app password (TEST_EMAIL_PASSWORD)
		IMAPHost     string        `yaml:"imap_host"`
		IMAPPort     int           `yaml:"imap_port"`
		Timeout      time.Duration `yaml:"timeout"`
		Folders      []string      `yaml:"folders"`
		MaxWait      time.Duration `yaml:"max_wait"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Skew         time.Duration `yaml:"skew"`
		MarkSeen     *bool         `yaml:"mark_seen"`
		Delete       *bool         `yaml:"delete"`
		OTPLength    int           `yaml:"otp_length"`

		// SMTP sólo se usa para `iamprobe mail probe`.
		SMTP struct {
			Host               string `yaml:"host"`
			Port               int    `yaml:"port"`
			Username           string `yaml:"username"`
			Password           string `yaml:"password"`
			From               string `yaml:"from"`
			TLS                string `yaml:"tls"` // auto | starttls | ssl | none
			InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		} `yaml:"smtp"`
	} `yaml:"mail"`

	Tracker struct {
		Kind  string `yaml:"kind"` // memory | redis
		RunID string `yaml:"run_id"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"tracker"`

	Batch struct {
		UserCreate  int     `yaml:"user_create"`
		UserDelete  int     `yaml:"user_delete"`
		UserRead    int     `yaml:"user_read"`
		UserUpdate  int     `yaml:"user_update"`
		RoleCreate  int     `yaml:"role_create"`
		RoleDelete  int     `yaml:"role_delete"`
		Concurrency int     `yaml:"concurrency"`
		RPS         float64 `yaml:"rps"`
	} `yaml:"batch"`

	Metrics struct {
		Addr string `yaml:"addr"` // vacío = no exponer /metrics
	} `yaml:"metrics"`
}

// LoadDotEnv carga un archivo .env si existe. No pisa variables ya exportadas.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides por env.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna la configuración por defecto más los overrides de entorno, sin validar.
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// API defaults (mismos valores que la suite original)
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.BasePath == "" {
		c.API.BasePath = "api/v1"
	}
	if c.API.DeviceID == "" {
		c.API.DeviceID = "Test-Device-001"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}

	// Mailbox defaults
	if c.Mail.IMAPHost == "" {
		c.Mail.IMAPHost = "imap.gmail.com"
	}
	if c.Mail.IMAPPort == 0 {
		c.Mail.IMAPPort = 993
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 30 * time.Second
	}
	if len(c.Mail.Folders) == 0 {
		c.Mail.Folders = []string{"INBOX", "[Gmail]/Spam"}
	}
	if c.Mail.MaxWait == 0 {
		c.Mail.MaxWait = 60 * time.Second
	}
	if c.Mail.PollInterval == 0 {
		c.Mail.PollInterval = 3 * time.Second
	}
	if c.Mail.Skew == 0 {
		c.Mail.Skew = 30 * time.Minute
	}
	if c.Mail.MarkSeen == nil {
		c.Mail.MarkSeen = boolPtr(true)
	}
	if c.Mail.Delete == nil {
		c.Mail.Delete = boolPtr(true)
	}
	if c.Mail.OTPLength == 0 {
		c.Mail.OTPLength = 6
	}
	if c.Mail.SMTP.Host == "" {
		c.Mail.SMTP.Host = "smtp.gmail.com"
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Mail.SMTP.TLS == "" {
		c.Mail.SMTP.TLS = "auto"
	}

	if c.Tracker.Kind == "" {
		c.Tracker.Kind = "memory"
	}
	if c.Tracker.Redis.Prefix == "" {
		c.Tracker.Redis.Prefix = "iamprobe"
	}

	// Límites del proveedor por tipo de operación
	if c.Batch.UserCreate == 0 {
		c.Batch.UserCreate = 34
	}
	if c.Batch.UserDelete == 0 {
		c.Batch.UserDelete = 34
	}
	if c.Batch.UserRead == 0 {
		c.Batch.UserRead = 100
	}
	if c.Batch.UserUpdate == 0 {
		c.Batch.UserUpdate = 34
	}
	if c.Batch.RoleCreate == 0 {
		c.Batch.RoleCreate = 34
	}
	if c.Batch.RoleDelete == 0 {
		c.Batch.RoleDelete = 34
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 1
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
// Los nombres TEST_EMAIL*, GLOBAL_ADMIN_* se mantienen por compat con los pipelines existentes.
func (c *Config) applyEnvOverrides() {
	// LOG
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// API
	if v, ok := getEnvStr("IAMPROBE_BASE_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := getEnvStr("IAMPROBE_BASE_PATH"); ok {
		c.API.BasePath = v
	}
	if v, ok := getEnvStr("IAMPROBE_DEVICE_ID"); ok {
		c.API.DeviceID = v
	}
	if v, ok := getEnvDur("IAMPROBE_TIMEOUT"); ok {
		c.API.Timeout = v
	}
	if v, ok := getEnvFloat("IAMPROBE_RATE_RPS"); ok {
		c.API.Rate.RPS = v
	}
	if v, ok := getEnvInt("IAMPROBE_RATE_BURST"); ok {
		c.API.Rate.Burst = v
	}

	// ADMIN
	if v, ok := getEnvStr("GLOBAL_ADMIN_USERNAME"); ok {
		c.Admin.Username = v
	}
	if v, ok := getEnvStr("GLOBAL_ADMIN_PASSWORD"); ok {
		c.Admin.Password = v
	}

	// MAIL
	if v, ok := getEnvStr("TEST_EMAIL"); ok {
		c.Mail.Address = v
	}
	if v, ok := getEnvStr("TEST_EMAIL_PASSWORD"); ok {
		c.Mail.Password = v
	}
	if v, ok := getEnvStr("MAIL_IMAP_HOST"); ok {
		c.Mail.IMAPHost = v
	}
	if v, ok := getEnvInt("MAIL_IMAP_PORT"); ok {
		c.Mail.IMAPPort = v
	}
	if v, ok := getEnvCSV("MAIL_FOLDERS"); ok && len(v) > 0 {
		c.Mail.Folders = v
	}
	if v, ok := getEnvDur("MAIL_MAX_WAIT"); ok {
		c.Mail.MaxWait = v
	}
	if v, ok := getEnvDur("MAIL_POLL_INTERVAL"); ok {
		c.Mail.PollInterval = v
	}
	if v, ok := getEnvBool("MAIL_MARK_SEEN"); ok {
		c.Mail.MarkSeen = boolPtr(v)
	}
	if v, ok := getEnvBool("MAIL_DELETE"); ok {
		c.Mail.Delete = boolPtr(v)
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.Mail.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.Mail.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.Mail.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.Mail.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.Mail.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.Mail.SMTP.TLS = v
	}

	// TRACKER
	if v, ok := getEnvStr("TRACKER_KIND"); ok {
		c.Tracker.Kind = v
	}
	if v, ok := getEnvStr("TRACKER_RUN_ID"); ok {
		c.Tracker.RunID = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Tracker.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Tracker.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Tracker.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Tracker.Redis.Prefix = v
	}

	// BATCH
	if v, ok := getEnvInt("BATCH_CONCURRENCY"); ok {
		c.Batch.Concurrency = v
	}
	if v, ok := getEnvFloat("BATCH_RPS"); ok {
		c.Batch.RPS = v
	}

	// METRICS
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("config: api.base_url must be http(s), got %q", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("config: api.timeout must be positive"))
	}
	if c.Mail.PollInterval <= 0 || c.Mail.MaxWait <= 0 {
		errs = append(errs, errors.New("config: mail.poll_interval and mail.max_wait must be positive"))
	}
	if c.Mail.OTPLength < 4 || c.Mail.OTPLength > 10 {
		errs = append(errs, fmt.Errorf("config: mail.otp_length out of range: %d", c.Mail.OTPLength))
	}
	switch c.Tracker.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Tracker.Redis.Addr) == "" {
			errs = append(errs, errors.New("config: tracker.redis.addr required when tracker.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown tracker.kind %q", c.Tracker.Kind))
	}
	for name, v := range map[string]int{
		"user_create": c.Batch.UserCreate, "user_delete": c.Batch.UserDelete,
		"user_read": c.Batch.UserRead, "user_update": c.Batch.UserUpdate,
		"role_create": c.Batch.RoleCreate, "role_delete": c.Batch.RoleDelete,
	} {
		if v < 1 {
			errs = append(errs, fmt.Errorf("config: batch.%s must be >= 1", name))
		}
	}
	return errors.Join(errs...)
}

// RequireAdmin valida que haya credenciales del admin global (setup/cleanup).
func (c *Config) RequireAdmin() error {
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.New("config: GLOBAL_ADMIN_USERNAME / GLOBAL_ADMIN_PASSWORD not set")
	}
	return nil
}

// RequireMailbox valida que haya credenciales del buzón de pruebas.
func (c *Config) RequireMailbox() error {
	if c.Mail.Address == "" || c.Mail.Password == "" {
		return errors.New("config: TEST_EMAIL / TEST_EMAIL_PASSWORD not set")
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
