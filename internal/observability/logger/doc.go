// Package logger provides the process-wide Zap logger used by iamprobe.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada escenario puede inyectar un logger con campos
//     propios (run_id, scenario) vía ToContext y recuperarlo con From(ctx).
//   - Environments: "dev" usa consola con colores, "prod" usa JSON
//     (útil cuando la suite corre en CI y los logs se indexan).
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, RunID: runID})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("mailbox"))
//	log.Info("no matching message yet", logger.Subject(subject))
package logger
