package app

import (
	"go.uber.org/fx"

	"github.com/Gthulhu/schedcore/config"
	"github.com/Gthulhu/schedcore/domain"
	"github.com/Gthulhu/schedcore/machine"
	"github.com/Gthulhu/schedcore/rest"
	"github.com/Gthulhu/schedcore/sched"
	"github.com/Gthulhu/schedcore/service"
)

func ConfigModule(cfg config.Config) (fx.Option, error) {
	return fx.Options(
		fx.Provide(func() config.Config {
			return cfg
		}),
		fx.Provide(func(c config.Config) config.SchedulerConfig {
			return c.Scheduler
		}),
		fx.Provide(func(c config.Config) config.ServerConfig {
			return c.Server
		}),
		fx.Provide(func(c config.Config) config.WorkloadConfig {
			return c.Workload
		}),
	), nil
}

// MachineModule creates an Fx module that provides the thread machine and
// binds it as the scheduler introspector.
func MachineModule(configModule fx.Option) (fx.Option, error) {
	return fx.Options(
		configModule,
		fx.Provide(NewMachine),
		fx.Provide(func(m *machine.Machine) domain.Introspector {
			return m
		}),
	), nil
}

// ServiceModule creates an Fx module that provides the service layer, return domain.Service
func ServiceModule(machineModule fx.Option) (fx.Option, error) {
	return fx.Options(
		machineModule,
		fx.Provide(service.NewService),
	), nil
}

// HandlerModule creates an Fx module that provides the REST handler, return *rest.Handler
func HandlerModule(serviceModule fx.Option) (fx.Option, error) {
	return fx.Options(
		serviceModule,
		fx.Provide(rest.NewHandler),
	), nil
}

func NewMachine(cfg config.SchedulerConfig) *machine.Machine {
	return machine.New(sched.Config{
		MLFQS:      cfg.MLFQS,
		TickHz:     cfg.TickHz,
		TimeSlice:  cfg.TimeSlice,
		MaxThreads: cfg.MaxThreads,
	})
}
