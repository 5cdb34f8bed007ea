package app

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Gthulhu/schedcore/config"
	"github.com/Gthulhu/schedcore/machine"
	"github.com/Gthulhu/schedcore/pkg/logger"
	"github.com/Gthulhu/schedcore/rest"
)

func NewRestApp(configName string, configDirPath string) (*fx.App, error) {
	cfg, err := config.InitConfig(configName, configDirPath)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Logging.Level)

	configModule, err := ConfigModule(cfg)
	if err != nil {
		return nil, err
	}
	machineModule, err := MachineModule(configModule)
	if err != nil {
		return nil, err
	}
	serviceModule, err := ServiceModule(machineModule)
	if err != nil {
		return nil, err
	}
	handlerModule, err := HandlerModule(serviceModule)
	if err != nil {
		return nil, err
	}

	app := fx.New(
		handlerModule,
		fx.Invoke(StartMachine),
		fx.Invoke(StartRestApp),
	)
	return app, nil
}

func StartRestApp(lc fx.Lifecycle, cfg config.ServerConfig, handler *rest.Handler) error {
	engine := echo.New()
	engine.HideBanner = true
	handler.SetupRoutes(engine)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			serverHost := cfg.Host
			if serverHost == "" {
				serverHost = ":8080"
			}
			go func() {
				logger.Logger(ctx).Info().Msgf("starting rest server on port %s", serverHost)
				if err := engine.Start(serverHost); err != nil {
					logger.Logger(ctx).Fatal().Err(err).Msgf("start rest server fail on port %s", serverHost)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Logger(ctx).Info().Msg("shutting down rest server")
			return engine.Shutdown(ctx)
		},
	})

	return nil
}

// StartMachine boots the thread machine with the configured workload and
// drives its timer from a real ticker.
func StartMachine(lc fx.Lifecycle, m *machine.Machine, schedCfg config.SchedulerConfig, workloadCfg config.WorkloadConfig) error {
	stopCh := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go m.Run(func() {
				StartWorkload(context.Background(), m, workloadCfg)
			})

			go func() {
				bgCtx := context.Background()
				tickHz := schedCfg.TickHz
				if tickHz <= 0 {
					tickHz = 100
				}
				interval := time.Second / time.Duration(tickHz)
				logger.Logger(bgCtx).Info().Msgf("timer started, %d ticks per second", tickHz)

				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						m.Interrupt()
					case <-stopCh:
						logger.Logger(bgCtx).Info().Msg("timer stopped")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stopCh)
			m.Shutdown()
			return nil
		},
	})

	return nil
}
