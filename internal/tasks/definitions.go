package tasks

import (
	"go.uber.org/zap"

	"retreat_app_echo/internal/services"
)

// Dependencies are the services task handlers need.
type Dependencies struct {
	Reports  *services.ReportService
	Notifier *services.Notifier
	AppURL   string
	Currency string
	Logger   *zap.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logInfo := NewLogInfoTask(logger)
	r.Register(logInfo.TaskID(), logInfo.HandleExecution)

	unpaid := NewUnpaidMealRemindersTask(deps.Reports, deps.Notifier, deps.AppURL, deps.Currency, logger)
	r.Register(unpaid.TaskID(), unpaid.HandleExecution)

	duties := NewDutyRemindersTask(deps.Reports, deps.Notifier, deps.AppURL, logger)
	r.Register(duties.TaskID(), duties.HandleExecution)
}
