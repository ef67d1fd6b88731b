// Package e2e corre escenarios contra un servicio IAM real.
// Se habilita con IAMPROBE_E2E=1; sin eso el paquete no hace nada.
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/iamprobe/internal/config"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
	"github.com/dropDatabas3/iamprobe/internal/probe"
)

var suite *probe.Suite

func TestMain(m *testing.M) {
	if os.Getenv("IAMPROBE_E2E") != "1" {
		fmt.Println("e2e: IAMPROBE_E2E!=1, skipping")
		os.Exit(0)
	}

	// .env (o el archivo indicado por E2E_ENV_FILE) desde la raíz del repo
	envFile := os.Getenv("E2E_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if root, err := findRepoRoot(); err == nil {
		candidate := filepath.Join(root, envFile)
		if _, err := os.Stat(candidate); err == nil {
			if err := godotenv.Load(candidate); err != nil {
				panic(err)
			}
		}
	}

	cfg, err := config.Load(os.Getenv("IAMPROBE_CONFIG"))
	if err != nil {
		panic(err)
	}
	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})

	suite, err = probe.NewSuite(cfg)
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := suite.Setup(ctx); err != nil {
		cancel()
		panic(err)
	}
	cancel()

	code := m.Run()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	rep := suite.Teardown(ctx)
	cancel()
	fmt.Printf("e2e teardown: users=%d roles=%d failures=%d\n", rep.UsersDeleted, rep.RolesDeleted, rep.Failures)
	_ = logger.Sync()
	os.Exit(code)
}

// findRepoRoot sube directorios hasta encontrar go.mod (máx 8 niveles).
func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("go.mod no encontrado desde %s", dir)
}
