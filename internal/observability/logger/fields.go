package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SUITE
// =================================================================================

// RunID identifica una corrida completa de la suite.
func RunID(v string) zap.Field { return zap.String("run_id", v) }

// Scenario es el nombre del escenario de prueba en curso.
func Scenario(v string) zap.Field { return zap.String("scenario", v) }

// Kind es el tipo de entidad (user, role) en operaciones bulk y cleanup.
func Kind(v string) zap.Field { return zap.String("kind", v) }

func Attempt(v int) zap.Field { return zap.Int("attempt", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - MAILBOX
// =================================================================================

func Folder(v string) zap.Field { return zap.String("folder", v) }

func Subject(v string) zap.Field { return zap.String("subject", v) }

// Email crea un campo para un email (usar con cuidado: es PII del buzón de pruebas).
func Email(v string) zap.Field { return zap.String("email", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
