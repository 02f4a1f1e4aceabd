package router

import (
	"context"

	appuser "github.com/oksasatya/go-user-service/internal/application"
	"github.com/oksasatya/go-user-service/internal/container"
	repouser "github.com/oksasatya/go-user-service/internal/domain/repository"
	"github.com/oksasatya/go-user-service/internal/infrastructure/cache"
	"github.com/oksasatya/go-user-service/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-user-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-user-service/internal/infrastructure/search"
	handlers "github.com/oksasatya/go-user-service/internal/interface/http"
	"github.com/oksasatya/go-user-service/internal/router/modules"
	"github.com/oksasatya/go-user-service/pkg/helpers"
)

type UserModuleDeps struct {
	Repo    repouser.UserRepository
	Service *appuser.UserUseCases
	Handler *handlers.UserHandler
}

func buildUserRepo() repouser.UserRepository {
	var repo repouser.UserRepository
	if pool := container.GetPGPool(); pool != nil && container.GetConfig().StorageDriver != "memory" {
		repo = pginfra.NewUserRepository(pool)
	} else {
		repo = memory.NewUserRepository()
	}
	if rdb := container.GetRedis(); rdb != nil {
		repo = cache.NewUserRepository(repo, rdb, container.GetConfig().UserCacheTTL, container.GetLogger())
	}
	return repo
}

func buildUserDeps() UserModuleDeps {
	cfg := container.GetConfig()
	repo := buildUserRepo()

	service := appuser.NewUserUseCases(repo, container.GetLogger())
	if es := container.GetES(); es != nil {
		service.Indexer = search.NewUserIndex(es, cfg.ESUsersIndex)
	}
	if pub := container.GetRabbitPub(); pub != nil {
		service.Events = pub
	}
	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		service.Snapshots = helpers.NewGCSUploader(gcs, cfg.GCSBucket)
	}

	return UserModuleDeps{
		Repo:    repo,
		Service: service,
		Handler: handlers.NewUserHandler(service, container.GetLogger()),
	}
}

func healthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if pool := container.GetPGPool(); pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb := container.GetRedis(); rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	userDeps := buildUserDeps()
	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(healthChecks())))
	r.Add(modules.NewUserModule(userDeps.Handler, container.GetJWT()))
	if cfg := container.GetConfig(); cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
