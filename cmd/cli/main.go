package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/nimasrn/farm-ledger/internal/cache"
	"github.com/nimasrn/farm-ledger/internal/config"
	"github.com/nimasrn/farm-ledger/internal/ledger"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/nimasrn/farm-ledger/internal/repository"
	"github.com/nimasrn/farm-ledger/internal/services"
	"github.com/nimasrn/farm-ledger/pkg/logger"
	"github.com/nimasrn/farm-ledger/pkg/pg"
	"github.com/nimasrn/farm-ledger/pkg/redis"
)

// main.go --cmd=migrate --dir=./migrations
// main.go --cmd=create-user --username=admin --password=... --role=admin --name="Farm Admin"
// main.go --cmd=repair-serials
func main() {
	if err := config.Load(getEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var err error
	switch cmd := argValue("cmd", "migrate"); cmd {
	case "migrate":
		err = pg.Migrate(config.Get().PostgresWrite(), getMigrationPath())
	case "create-user":
		err = createUser()
	case "repair-serials":
		err = repairSerials()
	default:
		logger.Error("unknown command", "cmd", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func connect() (*pg.DB, error) {
	cfg := config.Get()
	return pg.CreateReadWrite(cfg.PostgresWrite(), cfg.PostgresWrite(), false)
}

func createUser() error {
	db, err := connect()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// no tokens are issued here
	svc := services.NewAuthService(repository.NewUserRepository(db), nil)
	u, err := svc.CreateUser(ctx, model.UserCreateRequest{
		Username: argValue("username", ""),
		Password: argValue("password", ""),
		FullName: argValue("name", ""),
		Role:     model.Role(argValue("role", string(model.RoleMember))),
	})
	if err != nil {
		return err
	}
	logger.Info("user created", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

func repairSerials() error {
	db, err := connect()
	if err != nil {
		return err
	}

	cfg := config.Get()
	var summaries services.SummaryStore
	if cfg.RedisAddr != "" {
		adapter, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("cli"))
		if err != nil {
			logger.Warn("redis unavailable, cached summaries are left to expire", "error", err)
		} else {
			summaries = cache.NewSummaryCache(adapter, cfg.SummaryCacheTTL)
		}
	}

	svc := services.NewTransactionService(
		repository.NewTransactionRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewProjectRepository(db),
		ledger.NewScopeLocks(),
		summaries,
		nil,
	)
	res, err := svc.RepairAll(context.Background(), services.RepairSourceCLI)
	if err != nil {
		return err
	}
	logger.Info("serial repair finished", "scopes", res.Scopes, "repaired", res.Repaired, "renumbered", res.Renumbered)
	return nil
}

func argValue(name, def string) string {
	prefix := "--" + name + "="
	for _, v := range os.Args[1:] {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return def
}

func getEnvPath() string {
	path := argValue("env", ".env")
	if _, err := os.Stat(path); err != nil {
		logger.Warn("env file not found, using the environment", "path", path)
		return ""
	}
	return path
}

func getMigrationPath() string {
	dir := argValue("dir", "./migrations")
	if _, err := os.Stat(dir); err != nil {
		logger.Error("migrations directory not found", "dir", dir, "error", err)
		return ""
	}
	return dir
}
