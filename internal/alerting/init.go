package alerting

import (
	"context"

	"github.com/campaignwatch/campaignwatch/internal/conf"
	"github.com/campaignwatch/campaignwatch/internal/datastore/repository"
	"github.com/campaignwatch/campaignwatch/internal/logger"
)

// OptionsFromSettings converts engine settings into engine Options.
func OptionsFromSettings(s conf.EngineSettings) Options {
	return Options{
		CycleInterval:         s.CycleInterval.Std(),
		FetchTimeout:          s.FetchTimeout.Std(),
		PersistTimeout:        s.PersistTimeout.Std(),
		NotifyTimeout:         s.NotifyTimeout.Std(),
		CompetitorTimeout:     s.CompetitorTimeout.Std(),
		MaxConcurrentTenants:  s.MaxConcurrentTenants,
		InstanceRetentionDays: s.InstanceRetentionDays,
	}
}

// Initialize creates the engine from settings and audits the stored
// configurations once so defects show up in the log at startup rather than
// on the first due check. It does not start the scheduler.
func Initialize(ctx context.Context, settings conf.EngineSettings, deps Deps, log logger.Logger, options ...Option) (*Engine, error) {
	engine := NewEngine(deps, OptionsFromSettings(settings), log, options...)

	audited, err := auditConfigs(ctx, deps.Configs, engine.log)
	if err != nil {
		return nil, err
	}
	engine.log.Info("alerting engine initialized", logger.Int("active_configs", audited))
	return engine, nil
}

// auditConfigs compiles every active configuration and logs the ones with
// problems. It returns the number of configurations inspected.
func auditConfigs(ctx context.Context, repo repository.AlertConfigRepository, log logger.Logger) (int, error) {
	active := true
	configs, err := repo.ListConfigs(ctx, repository.AlertConfigFilter{Active: &active})
	if err != nil {
		return 0, err
	}

	var broken int
	for i := range configs {
		cc := Compile(&configs[i])
		if cc.Err == nil && len(cc.Problems) == 0 {
			continue
		}
		broken++
		fields := []logger.Field{
			logger.Uint64("alert_id", uint64(configs[i].ID)),
			logger.String("tenant_id", configs[i].TenantID),
			logger.Any("problems", cc.Problems),
		}
		if cc.Err != nil {
			fields = append(fields, logger.Error(cc.Err))
		}
		log.Warn("stored alert configuration has problems", fields...)
	}
	if broken > 0 {
		log.Warn("alert configurations need attention", logger.Int("count", broken))
	}
	return len(configs), nil
}
