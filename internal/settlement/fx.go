package settlement

import (
	"github.com/smallbiznis/settlement/internal/settlement/repository"
	"github.com/smallbiznis/settlement/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.NewClaimRepository),
	fx.Provide(repository.NewPayoutRepository),
	fx.Provide(service.NewService),
)
