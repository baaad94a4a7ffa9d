package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduledTaskNextDue(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) // Monday
	weekly := "FREQ=WEEKLY;BYDAY=MO"
	broken := "NOT A RULE"

	tests := []struct {
		name     string
		task     ScheduledTask
		now      time.Time
		expected time.Time
	}{
		{
			name:     "one time keeps due",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeOneTime, Due: start},
			now:      start.Add(48 * time.Hour),
			expected: start,
		},
		{
			name:     "weekly advances to next monday",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: start, RecurringInterval: &weekly},
			now:      start,
			expected: start.AddDate(0, 0, 7),
		},
		{
			name:     "unparseable rule keeps due",
			task:     ScheduledTask{TaskType: ScheduledTaskTypeRecurring, Due: start, RecurringInterval: &broken},
			now:      start,
			expected: start,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(tt.task.NextDue(tt.now)), "got %s", tt.task.NextDue(tt.now))
		})
	}
}

func TestRetreatOrderingClosed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, Retreat{}.OrderingClosed(now))
	assert.True(t, Retreat{MealOrderDeadline: &past}.OrderingClosed(now))
	assert.False(t, Retreat{MealOrderDeadline: &future}.OrderingClosed(now))
}

func TestUserDisplayName(t *testing.T) {
	name := "Tenzin"
	empty := ""
	assert.Equal(t, "Tenzin", User{Email: "t@example.com", Name: &name}.DisplayName())
	assert.Equal(t, "t@example.com", User{Email: "t@example.com", Name: &empty}.DisplayName())
	assert.Equal(t, "t@example.com", User{Email: "t@example.com"}.DisplayName())
}
