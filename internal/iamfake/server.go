// Package iamfake es un servicio IAM mínimo en memoria que respeta el contrato
// REST consumido por iamprobe. Lo usan los tests de api, admin, mfa y probe.
//
// No es una implementación de referencia: solo cubre lo que los escenarios ejercitan.
package iamfake

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/mailbox/memstore"
)

type Options struct {
	AdminUsername string
	AdminPassword string
	AdminEmail    string

	// Mail recibe los OTPs por email; nil deshabilita EMAIL_MFA.
	Mail       *memstore.Store
	MailFolder string
	MailFrom   string

	EnableEmailSubject string
	LoginEmailSubject  string

	TokenTTL time.Duration
}

type user struct {
	api.User
	appMFA     bool
	emailMFA   bool
	totpSecret string // pendiente o activo
	emailOTP   string // pendiente de verify toggle
}

type session struct {
	username string
	gen      int
}

type state struct {
	username string
	mfaType  string
	otp      string
}

type Server struct {
	opts   Options
	signer []byte

	mu       sync.Mutex
	users    map[string]*user
	roles    map[string]api.Role
	sessions map[string]session
	states   map[string]state
	gen      int
	calls    map[string]int

	rejectAll     bool
	failDeletes   int
	deletedBy     map[string]int
	deleteBatches []int
}

func New(opts Options) *Server {
	if opts.AdminUsername == "" {
		opts.AdminUsername = "global-admin"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = "Admin@123"
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@iam.test"
	}
	if opts.MailFolder == "" {
		opts.MailFolder = "INBOX"
	}
	if opts.MailFrom == "" {
		opts.MailFrom = "no-reply@iam.test"
	}
	if opts.EnableEmailSubject == "" {
		opts.EnableEmailSubject = "Otp to enable email Mfa"
	}
	if opts.LoginEmailSubject == "" {
		opts.LoginEmailSubject = "Otp to verify email Mfa to login"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 30 * time.Minute
	}
	s := &Server{
		opts:      opts,
		signer:    []byte("iamfake-signing-key"),
		users:     map[string]*user{},
		roles:     map[string]api.Role{},
		sessions:  map[string]session{},
		states:    map[string]state{},
		calls:     map[string]int{},
		deletedBy: map[string]int{},
	}
	s.users[opts.AdminUsername] = &user{User: api.User{
		Username: opts.AdminUsername,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
		Roles:    []string{"ROLE_SUPER_ADMIN"},
	}}
	return s
}

// Handler expone el router con el base path /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)
	r.Use(requireDevice)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/logout", s.authed(s.logout))
			r.Post("/logout/allDevices", s.authed(s.logoutAll))
			r.Post("/mfa/requestTo/toggle", s.authed(s.requestToggle))
			r.Post("/mfa/verifyTo/toggle", s.authed(s.verifyToggle))
			r.Post("/mfa/verifyTo/login", s.verifyLogin)
		})
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Get("/getSelfDetails", s.authed(s.selfDetails))
		})
		r.Route("/admin", func(r chi.Router) {
			r.Post("/create/users", s.admin(s.createUsers))
			r.Delete("/delete/users", s.admin(s.deleteUsers))
			r.Get("/read/users", s.admin(s.readUsers))
			r.Put("/update/users", s.admin(s.updateUsers))
			r.Post("/create/roles", s.admin(s.createRoles))
			r.Delete("/delete/roles", s.admin(s.deleteRoles))
			r.Get("/read/roles", s.admin(s.readRoles))
			r.Put("/update/roles", s.admin(s.updateRoles))
			r.Get("/read/permissions", s.admin(s.readPermissions))
		})
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/v1")]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func requireDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(api.DeviceIDHeader)) == "" {
			writeError(w, http.StatusBadRequest, "Device id header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// ---- Controles para tests ----

// Calls retorna cuántas veces se llamó "METHOD /path" (sin base path).
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ExpireTokens invalida todos los access tokens emitidos hasta ahora.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
}

// RejectAllTokens hace que todo endpoint autenticado responda 401.
func (s *Server) RejectAllTokens(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = v
}

// FailDeletes hace fallar (500) los próximos n batches de borrado.
func (s *Server) FailDeletes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDeletes = n
}

// DeletedBy cuenta borrados de users por tipo de identificador ("email"|"username").
func (s *Server) DeletedBy(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletedBy[kind]
}

// DeleteBatchSizes retorna el tamaño de cada batch de borrado recibido.
func (s *Server) DeleteBatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.deleteBatches...)
}

func (s *Server) HasUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

func (s *Server) HasRole(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.roles[name]
	return ok
}

// AddUser siembra un usuario directamente.
func (s *Server) AddUser(u api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = &user{User: u}
}

// Admin retorna las credenciales del admin sembrado.
func (s *Server) Admin() (username, password string) {
	return s.opts.AdminUsername, s.opts.AdminPassword
}
