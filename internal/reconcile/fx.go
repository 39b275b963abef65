package reconcile

import (
	"github.com/kassenwart/kassenwart/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(
		service.NewService,
		NewRunner,
	),
)
