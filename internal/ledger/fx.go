package ledger

import (
	"github.com/kassenwart/kassenwart/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
