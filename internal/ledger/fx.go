package ledger

import (
	"github.com/smallbiznis/settlement/internal/ledger/repository"
	"github.com/smallbiznis/settlement/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
