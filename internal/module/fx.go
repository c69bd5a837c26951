package module

import (
	"github.com/smallbiznis/entitlement/internal/module/repository"
	"github.com/smallbiznis/entitlement/internal/module/service"
	"go.uber.org/fx"
)

var Module = fx.Module("module.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
