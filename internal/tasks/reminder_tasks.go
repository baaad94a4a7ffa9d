package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
)

const retryDelay = 5 * time.Minute

// ReminderArgs narrows a reminder run. Empty fields mean everyone.
type ReminderArgs struct {
	RetreatID    uint   `json:"retreat_id,omitempty"`
	UserIDs      []uint `json:"user_ids,omitempty"`
	AttemptCount int    `json:"attempt_count,omitempty"`
}

func (a ReminderArgs) includes(userID, retreatID uint) bool {
	if a.RetreatID != 0 && a.RetreatID != retreatID {
		return false
	}
	if len(a.UserIDs) == 0 {
		return true
	}
	for _, id := range a.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// reminder is one message for one user.
type reminder struct {
	user    models.User
	subject string
	body    string
}

// reminderSender delivers reminders through each user's preferred channel
// and reschedules the users it could not reach.
type reminderSender struct {
	notifier *services.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func (s *reminderSender) deliver(ctx context.Context, db *gorm.DB, taskName string, task models.ScheduledTask, args ReminderArgs, reminders []reminder) (map[string]interface{}, error) {
	successCount, skippedCount := 0, 0
	var failures []string
	var failedUsers []uint

	for _, r := range reminders {
		channel, err := s.notifier.Notify(ctx, r.user, r.subject, r.body)
		switch {
		case err != nil:
			s.logger.Warn("reminder failed", zap.String("task", taskName), zap.Uint("user_id", r.user.ID), zap.String("channel", string(channel)), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", r.user.Email, err))
			failedUsers = append(failedUsers, r.user.ID)
		case channel == models.NotificationChannelNone:
			skippedCount++
		default:
			successCount++
		}
	}

	result := map[string]interface{}{
		"total":   len(reminders),
		"success": successCount,
		"skipped": skippedCount,
		"failure": len(failedUsers),
	}
	if len(failedUsers) == 0 {
		return result, nil
	}
	result["errors"] = failures

	attempt := args.AttemptCount + 1
	if attempt >= task.MaxAttempt {
		return result, fmt.Errorf("%w: max attempts reached, failed to deliver to %d users", ErrNoRetry, len(failedUsers))
	}

	retry := args
	retry.UserIDs = failedUsers
	retry.AttemptCount = attempt
	next, err := BuildScheduledTask(taskName, retry, s.now().Add(retryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
	if err != nil {
		return result, err
	}
	if err := db.WithContext(ctx).Create(next).Error; err != nil {
		return result, fmt.Errorf("failed to create retry task: %w", err)
	}
	s.logger.Info("rescheduled failed reminders", zap.String("task", taskName), zap.Int("users", len(failedUsers)), zap.Int("attempt", attempt+1))
	result["retry_task_id"] = next.ID
	return result, nil
}

// UnpaidMealRemindersTaskDef reminds users of meal orders still pending
// payment.
type UnpaidMealRemindersTaskDef struct {
	reminderSender
	reports  *services.ReportService
	appURL   string
	currency string
}

func NewUnpaidMealRemindersTask(reports *services.ReportService, notifier *services.Notifier, appURL, currency string, logger *zap.Logger) *UnpaidMealRemindersTaskDef {
	return &UnpaidMealRemindersTaskDef{
		reminderSender: reminderSender{notifier: notifier, logger: logger, now: time.Now},
		reports:        reports,
		appURL:         strings.TrimRight(appURL, "/"),
		currency:       currency,
	}
}

func (t *UnpaidMealRemindersTaskDef) TaskID() string {
	return "send_unpaid_meal_reminders"
}

func (t *UnpaidMealRemindersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ReminderArgs
	if err := parseArguments(task, &args); err != nil {
		return nil, err
	}

	report, err := t.reports.UnpaidMeals(ctx)
	if err != nil {
		return nil, err
	}

	type userOrders struct {
		user  models.User
		lines []services.UnpaidOrderLine
	}
	var order []uint
	byUser := map[uint]*userOrders{}
	for _, line := range report.Orders {
		o := line.Order
		if !args.includes(o.UserID, o.RetreatID) {
			continue
		}
		u, ok := byUser[o.UserID]
		if !ok {
			u = &userOrders{user: o.User}
			byUser[o.UserID] = u
			order = append(order, o.UserID)
		}
		u.lines = append(u.lines, line)
	}

	reminders := make([]reminder, 0, len(order))
	for _, id := range order {
		u := byUser[id]
		reminders = append(reminders, reminder{
			user:    u.user,
			subject: "Meal payment reminder",
			body:    t.body(u.user, u.lines),
		})
	}
	return t.deliver(ctx, db, t.TaskID(), task, args, reminders)
}

func (t *UnpaidMealRemindersTaskDef) body(user models.User, lines []services.UnpaidOrderLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThe following meal orders are still awaiting payment:\n\n", user.DisplayName())

	total := decimal.Zero
	retreats := map[uint]string{}
	for _, line := range lines {
		meal := line.Order.Meal
		fmt.Fprintf(&b, "- %s, %s (%s): %s %s\n",
			meal.Name, meal.MealDate.Format("Mon Jan 2"), meal.Retreat.Name, line.Amount.StringFixed(2), t.currency)
		total = total.Add(line.Amount)
		retreats[meal.RetreatID] = meal.Retreat.Name
	}
	fmt.Fprintf(&b, "\nTotal due: %s %s\n\nPay online:\n", total.StringFixed(2), t.currency)
	for id, name := range retreats {
		fmt.Fprintf(&b, "%s: %s/retreats/%d\n", name, t.appURL, id)
	}
	b.WriteString("\nCash payments can be made at the retreat.")
	return b.String()
}

// DutyRemindersTaskDef reminds users of duty assignments they have not
// acknowledged.
type DutyRemindersTaskDef struct {
	reminderSender
	reports *services.ReportService
	appURL  string
}

func NewDutyRemindersTask(reports *services.ReportService, notifier *services.Notifier, appURL string, logger *zap.Logger) *DutyRemindersTaskDef {
	return &DutyRemindersTaskDef{
		reminderSender: reminderSender{notifier: notifier, logger: logger, now: time.Now},
		reports:        reports,
		appURL:         strings.TrimRight(appURL, "/"),
	}
}

func (t *DutyRemindersTaskDef) TaskID() string {
	return "send_duty_reminders"
}

func (t *DutyRemindersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var args ReminderArgs
	if err := parseArguments(task, &args); err != nil {
		return nil, err
	}

	report, err := t.reports.UnacknowledgedDuties(ctx)
	if err != nil {
		return nil, err
	}

	var reminders []reminder
	for _, ud := range report.Users {
		var open []models.DutyAssignment
		for _, a := range ud.Assignments {
			if args.includes(a.UserID, a.Duty.RetreatID) {
				open = append(open, a)
			}
		}
		if len(open) == 0 {
			continue
		}
		reminders = append(reminders, reminder{
			user:    ud.User,
			subject: "Duty reminder",
			body:    t.body(ud.User, open),
		})
	}
	return t.deliver(ctx, db, t.TaskID(), task, args, reminders)
}

func (t *DutyRemindersTaskDef) body(user models.User, assignments []models.DutyAssignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYou have been assigned the following duties:\n\n", user.DisplayName())
	for _, a := range assignments {
		fmt.Fprintf(&b, "- %s (%s)", a.Duty.Title, a.Duty.Retreat.Name)
		if a.Duty.Description != nil && *a.Duty.Description != "" {
			fmt.Fprintf(&b, ": %s", *a.Duty.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nPlease acknowledge them at %s/retreats/%d", t.appURL, assignments[0].Duty.RetreatID)
	return b.String()
}
