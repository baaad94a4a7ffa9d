package tasks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
)

const (
	historySuccess         = "success"
	historyFailure         = "failure"
	historyHandlerNotFound = "handler_not_found"

	lockTTL = 10 * time.Minute
)

// ErrNoRetry marks a failure the runner must not retry in place, usually
// because the handler already scheduled its own follow-up.
var ErrNoRetry = errors.New("do not retry")

// Runner executes due scheduled tasks. The Redis lock keeps two workers from
// running the same task; without Redis every task runs.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	cache    *services.RedisCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry, cache *services.RedisCache, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, registry: registry, cache: cache, logger: logger, now: time.Now}
}

// RunDue executes every active task whose due time has passed and reports
// how many ran.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		r.logger.Debug("no pending tasks")
		return 0, nil
	}

	r.logger.Info("found pending tasks", zap.Int("count", len(pending)))
	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		if r.Execute(ctx, task) {
			ran++
		}
	}
	return ran, nil
}

// Execute runs one task up to MaxAttempt times, records every attempt in the
// history table and moves the task to its next state. It returns false when
// another worker holds the task.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) bool {
	log := r.logger.With(zap.Uint("task_id", task.ID), zap.String("task", task.TaskName))

	lockKey := services.TaskLockKey(task.ID)
	acquired, err := r.cache.SetNX(ctx, lockKey, r.now().Unix(), lockTTL)
	if err != nil {
		log.Warn("task lock unavailable", zap.Error(err))
		return false
	}
	if !acquired {
		log.Debug("task locked by another worker")
		return false
	}
	defer func() {
		if err := r.cache.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Warn("failed to release task lock", zap.Error(err))
		}
	}()

	db := r.db.WithContext(ctx)
	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Error("task handler not found")
		now := r.now()
		r.record(db, task, now, 0, historyHandlerNotFound, 1, map[string]interface{}{"error": "Handler not found"})
		db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return true
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		succeeded bool
	)
	for attempt := 1; attempt <= maxAttempt && ctx.Err() == nil; attempt++ {
		startTime = r.now()
		result, err := handler(ctx, r.db, task)
		runtime := int(time.Since(startTime).Milliseconds())

		if err == nil {
			log.Info("task completed", zap.Int("attempt", attempt))
			r.record(db, task, startTime, runtime, historySuccess, attempt, result)
			succeeded = true
			break
		}

		log.Warn("task failed", zap.Int("attempt", attempt), zap.Error(err))
		data := map[string]interface{}{"error": err.Error()}
		for k, v := range result {
			data[k] = v
		}
		r.record(db, task, startTime, runtime, historyFailure, attempt, data)
		if errors.Is(err, ErrNoRetry) {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &startTime}
	switch {
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// A failed run of a recurring task still moves on to the next
		// occurrence; the history keeps the failure.
		next := task.NextDue(r.now())
		if next.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = next
		} else if succeeded {
			updates["status"] = models.ScheduledTaskStatusDone
		} else {
			updates["status"] = models.ScheduledTaskStatusFailure
		}
	case succeeded:
		updates["status"] = models.ScheduledTaskStatusDone
	default:
		updates["status"] = models.ScheduledTaskStatusFailure
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		log.Error("failed to update task", zap.Error(err))
	}
	return true
}

func (r *Runner) record(db *gorm.DB, task models.ScheduledTask, runAt time.Time, runtime int, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		Runtime:         runtime,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := db.Create(&history).Error; err != nil {
		r.logger.Error("failed to record task history", zap.Uint("task_id", task.ID), zap.Error(err))
	}
}
