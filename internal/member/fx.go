package member

import (
	"github.com/kassenwart/kassenwart/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(service.NewService),
)
