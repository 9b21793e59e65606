package marketplace

import (
	"github.com/smallbiznis/settlement/internal/marketplace/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("marketplace.repository",
	fx.Provide(repository.NewRepository),
)
