package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
)

var testNow = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := services.InitDB(":memory:", services.DBOptions{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, services.AutoMigrate(db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestRunner(db *gorm.DB, registry *Registry) *Runner {
	r := NewRunner(db, registry, nil, nil)
	r.now = func() time.Time { return testNow }
	return r
}

func seedTask(t *testing.T, db *gorm.DB, name string, taskType models.ScheduledTaskType, due time.Time, maxAttempt int, rule *string) models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(name, map[string]interface{}{"message": "hello"}, due, rule, taskType, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, db.Create(task).Error)
	return *task
}

func histories(t *testing.T, db *gorm.DB, taskID uint) []models.ScheduledTaskHistory {
	t.Helper()
	var rows []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", taskID).Order("attempt_number asc").Find(&rows).Error)
	return rows
}

func reload(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	DefineTasks(r, Dependencies{})

	assert.Equal(t, []string{"log_info", "send_duty_reminders", "send_unpaid_meal_reminders"}, r.Names())
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRunnerOneTimeSuccess(t *testing.T) {
	db := newTestDB(t)
	registry := NewRegistry()
	DefineTasks(registry, Dependencies{})
	task := seedTask(t, db, "log_info", models.ScheduledTaskTypeOneTime, testNow.Add(-time.Minute), 3, nil)

	ran, err := newTestRunner(db, registry).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	assert.Equal(t, models.ScheduledTaskStatusDone, reload(t, db, task.ID).Status)
	rows := histories(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, historySuccess, rows[0].Status)
	assert.Equal(t, "hello", rows[0].Result["message"])
}

func TestRunnerSkipsFutureTasks(t *testing.T) {
	db := newTestDB(t)
	registry := NewRegistry()
	DefineTasks(registry, Dependencies{})
	task := seedTask(t, db, "log_info", models.ScheduledTaskTypeOneTime, testNow.Add(time.Hour), 3, nil)

	ran, err := newTestRunner(db, registry).RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Equal(t, models.ScheduledTaskStatusActive, reload(t, db, task.ID).Status)
}

func TestRunnerRetries(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
	}{
		{name: "retries up to max attempt", err: errors.New("boom"), attempts: 3},
		{name: "no retry error stops at once", err: fmt.Errorf("%w: gave up", ErrNoRetry), attempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			calls := 0
			registry := NewRegistry()
			registry.Register("flaky", func(context.Context, *gorm.DB, models.ScheduledTask) (map[string]interface{}, error) {
				calls++
				return nil, tt.err
			})
			task := seedTask(t, db, "flaky", models.ScheduledTaskTypeOneTime, testNow.Add(-time.Minute), 3, nil)

			newTestRunner(db, registry).Execute(context.Background(), task)

			assert.Equal(t, tt.attempts, calls)
			assert.Equal(t, models.ScheduledTaskStatusFailure, reload(t, db, task.ID).Status)
			rows := histories(t, db, task.ID)
			require.Len(t, rows, tt.attempts)
			assert.Equal(t, historyFailure, rows[len(rows)-1].Status)
			assert.Equal(t, tt.attempts, rows[len(rows)-1].AttemptNumber)
		})
	}
}

func TestRunnerSucceedsOnSecondAttempt(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	registry := NewRegistry()
	registry.Register("flaky", func(context.Context, *gorm.DB, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("temporary")
		}
		return map[string]interface{}{"ok": true}, nil
	})
	task := seedTask(t, db, "flaky", models.ScheduledTaskTypeOneTime, testNow.Add(-time.Minute), 3, nil)

	newTestRunner(db, registry).Execute(context.Background(), task)

	assert.Equal(t, models.ScheduledTaskStatusDone, reload(t, db, task.ID).Status)
	rows := histories(t, db, task.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, historyFailure, rows[0].Status)
	assert.Equal(t, historySuccess, rows[1].Status)
}

func TestRunnerHandlerNotFound(t *testing.T) {
	db := newTestDB(t)
	task := seedTask(t, db, "unknown", models.ScheduledTaskTypeOneTime, testNow.Add(-time.Minute), 3, nil)

	newTestRunner(db, NewRegistry()).Execute(context.Background(), task)

	assert.Equal(t, models.ScheduledTaskStatusFailure, reload(t, db, task.ID).Status)
	rows := histories(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, historyHandlerNotFound, rows[0].Status)
}

func TestRunnerRecurringAdvancesDue(t *testing.T) {
	db := newTestDB(t)
	registry := NewRegistry()
	registry.Register("weekly", func(context.Context, *gorm.DB, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("smtp down")
	})
	rule := "FREQ=DAILY"
	due := testNow.Add(-time.Hour)
	task := seedTask(t, db, "weekly", models.ScheduledTaskTypeRecurring, due, 1, &rule)

	newTestRunner(db, registry).Execute(context.Background(), task)

	got := reload(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, got.Status)
	assert.WithinDuration(t, due.AddDate(0, 0, 1), got.Due, time.Second)
}

// Reminder tests

type fakeMailer struct {
	to   []string
	body []string
	fail map[string]bool
}

func (m *fakeMailer) SendEmail(to []string, _, body string) error {
	if m.fail[to[0]] {
		return errors.New("mailbox unavailable")
	}
	m.to = append(m.to, to...)
	m.body = append(m.body, body)
	return nil
}

func strPtr(s string) *string { return &s }

type reminderFixture struct {
	db      *gorm.DB
	alice   models.User
	bob     models.User
	retreat models.Retreat
	other   models.Retreat
}

func newReminderFixture(t *testing.T) reminderFixture {
	t.Helper()
	db := newTestDB(t)
	f := reminderFixture{db: db}

	f.alice = models.User{Email: "alice@example.com", Name: strPtr("Alice"), Role: models.UserRoleParticipant}
	f.bob = models.User{Email: "bob@example.com", Name: strPtr("Bob"), Role: models.UserRoleParticipant}
	require.NoError(t, db.Create(&f.alice).Error)
	require.NoError(t, db.Create(&f.bob).Error)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f.retreat = models.Retreat{Name: "Summer", StartDate: start, EndDate: start.AddDate(0, 0, 3), Status: models.RetreatStatusUpcoming}
	f.other = models.Retreat{Name: "Autumn", StartDate: start.AddDate(0, 3, 0), EndDate: start.AddDate(0, 3, 3), Status: models.RetreatStatusUpcoming}
	require.NoError(t, db.Create(&f.retreat).Error)
	require.NoError(t, db.Create(&f.other).Error)
	return f
}

func (f reminderFixture) order(t *testing.T, user models.User, retreat models.Retreat, name string, price float64) {
	t.Helper()
	meal := models.Meal{RetreatID: retreat.ID, Name: name, Price: price, MealDate: retreat.StartDate.Add(12 * time.Hour), Available: true}
	require.NoError(t, f.db.Create(&meal).Error)
	order := models.MealOrder{UserID: user.ID, MealID: meal.ID, RetreatID: retreat.ID, Status: models.MealOrderStatusPending}
	require.NoError(t, f.db.Create(&order).Error)
}

func (f reminderFixture) assign(t *testing.T, user models.User, retreat models.Retreat, title string) {
	t.Helper()
	duty := models.Duty{RetreatID: retreat.ID, Title: title, Status: models.DutyStatusAssigned}
	require.NoError(t, f.db.Create(&duty).Error)
	a := models.DutyAssignment{DutyID: duty.ID, UserID: user.ID, Status: models.AssignmentStatusAssigned, AssignedAt: testNow}
	require.NoError(t, f.db.Create(&a).Error)
}

func (f reminderFixture) unpaidTask(mailer *fakeMailer) *UnpaidMealRemindersTaskDef {
	notifier := services.NewNotifier(f.db, mailer, nil, nil)
	task := NewUnpaidMealRemindersTask(services.NewReportService(f.db), notifier, "https://retreat.test/", "CAD", nil)
	task.now = func() time.Time { return testNow }
	return task
}

func TestUnpaidMealReminders(t *testing.T) {
	f := newReminderFixture(t)
	f.order(t, f.alice, f.retreat, "Lunch", 12.5)
	f.order(t, f.alice, f.retreat, "Dinner", 20)
	f.order(t, f.bob, f.other, "Breakfast", 8)

	mailer := &fakeMailer{}
	def := f.unpaidTask(mailer)
	task := models.ScheduledTask{TaskName: def.TaskID(), MaxAttempt: 3}

	result, err := def.HandleExecution(context.Background(), f.db, task)
	require.NoError(t, err)
	assert.Equal(t, 2, result["success"])
	require.Len(t, mailer.to, 2)

	var aliceBody string
	for i, to := range mailer.to {
		if to == "alice@example.com" {
			aliceBody = mailer.body[i]
		}
	}
	assert.Contains(t, aliceBody, "Lunch")
	assert.Contains(t, aliceBody, "Total due: 32.50 CAD")
	assert.Contains(t, aliceBody, fmt.Sprintf("https://retreat.test/retreats/%d", f.retreat.ID))
}

func TestUnpaidMealRemindersFiltersRetreat(t *testing.T) {
	f := newReminderFixture(t)
	f.order(t, f.alice, f.retreat, "Lunch", 10)
	f.order(t, f.bob, f.other, "Breakfast", 8)

	mailer := &fakeMailer{}
	def := f.unpaidTask(mailer)
	args, err := toArguments(ReminderArgs{RetreatID: f.other.ID})
	require.NoError(t, err)

	_, err = def.HandleExecution(context.Background(), f.db, models.ScheduledTask{Arguments: args, MaxAttempt: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@example.com"}, mailer.to)
}

func TestUnpaidMealRemindersSkipsDisabledUsers(t *testing.T) {
	f := newReminderFixture(t)
	f.order(t, f.alice, f.retreat, "Lunch", 10)
	require.NoError(t, f.db.Create(&models.UserNotifPreference{UserID: f.alice.ID, Channel: models.NotificationChannelNone}).Error)

	mailer := &fakeMailer{}
	result, err := f.unpaidTask(mailer).HandleExecution(context.Background(), f.db, models.ScheduledTask{MaxAttempt: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result["skipped"])
	assert.Empty(t, mailer.to)
}

func TestRemindersRescheduleFailures(t *testing.T) {
	f := newReminderFixture(t)
	f.order(t, f.alice, f.retreat, "Lunch", 10)
	f.order(t, f.bob, f.retreat, "Lunch 2", 10)

	mailer := &fakeMailer{fail: map[string]bool{"bob@example.com": true}}
	def := f.unpaidTask(mailer)

	result, err := def.HandleExecution(context.Background(), f.db, models.ScheduledTask{TaskName: def.TaskID(), MaxAttempt: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result["failure"])

	var retry models.ScheduledTask
	require.NoError(t, f.db.Where("task_name = ?", def.TaskID()).Take(&retry).Error)
	assert.Equal(t, models.ScheduledTaskTypeOneTime, retry.TaskType)
	assert.WithinDuration(t, testNow.Add(retryDelay), retry.Due, time.Second)

	var args ReminderArgs
	require.NoError(t, parseArguments(retry, &args))
	assert.Equal(t, []uint{f.bob.ID}, args.UserIDs)
	assert.Equal(t, 1, args.AttemptCount)

	// The retry only targets bob and gives up on its final attempt.
	retry.Arguments["attempt_count"] = 2
	mailer.to = nil
	_, err = def.HandleExecution(context.Background(), f.db, retry)
	require.ErrorIs(t, err, ErrNoRetry)
	assert.Empty(t, mailer.to)
}

func TestDutyReminders(t *testing.T) {
	f := newReminderFixture(t)
	f.assign(t, f.alice, f.retreat, "Kitchen cleanup")
	f.assign(t, f.alice, f.retreat, "Dharma hall setup")
	f.assign(t, f.bob, f.other, "Parking")

	mailer := &fakeMailer{}
	notifier := services.NewNotifier(f.db, mailer, nil, nil)
	def := NewDutyRemindersTask(services.NewReportService(f.db), notifier, "https://retreat.test", nil)
	args, err := toArguments(ReminderArgs{RetreatID: f.retreat.ID})
	require.NoError(t, err)

	result, err := def.HandleExecution(context.Background(), f.db, models.ScheduledTask{Arguments: args, MaxAttempt: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result["total"])
	require.Equal(t, []string{"alice@example.com"}, mailer.to)
	assert.Equal(t, 2, strings.Count(mailer.body[0], "\n- "))
	assert.Contains(t, mailer.body[0], "Kitchen cleanup")
}
