package domain

import (
	"context"

	"github.com/akeren/lasting-loves-waitlist/config"
	"github.com/akeren/lasting-loves-waitlist/domain/monitoring"
	"github.com/akeren/lasting-loves-waitlist/domain/waitlist"
	"github.com/akeren/lasting-loves-waitlist/internal/i18n"
)

// SetupCoreDomain mounts every controller and starts the scheduled jobs. The
// jobs are stopped by appConfig.Cleanup.
func SetupCoreDomain(appConfig *config.ApplicationConfig) error {
	translator, err := i18n.NewTranslator(appConfig.Logger)
	if err != nil {
		return err
	}

	waitlistFactory := waitlist.NewWaitlistServiceFactory(waitlist.Dependencies{
		DB:         appConfig.DB,
		Logger:     appConfig.Logger,
		Tasks:      appConfig.Tasks,
		Mailer:     appConfig.Mailer,
		Events:     appConfig.Events,
		Translator: translator,

		JoinRateLimit: appConfig.Config.JoinRateLimit,
	})

	appConfig.RouterService.MountController(monitoring.NewMonitoringControllerFactory(appConfig.DB, appConfig.Logger, appConfig.Cache).CreateController())
	appConfig.RouterService.MountController(waitlistFactory.CreateController())

	reporter, err := waitlist.NewSizeReporter(
		appConfig.Logger,
		waitlistFactory.CreateService(),
		appConfig.Config.SizeReportSchedule,
		appConfig.RouterService.MetricsRegistry(),
	)
	if err != nil {
		return err
	}
	reporter.Report(context.Background())
	reporter.Start()
	appConfig.OnShutdown(reporter.Stop)

	return nil
}
