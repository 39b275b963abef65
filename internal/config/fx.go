package config

import "go.uber.org/fx"

// Module wires process and accounting configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewAccountingConfigHolder,
	),
)
