package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// UnpaidOrderLine is one pending order with its expected amount.
type UnpaidOrderLine struct {
	Order  models.MealOrder `json:"order"`
	Amount decimal.Decimal  `json:"amount"`
}

type UnpaidMealsReport struct {
	Orders []UnpaidOrderLine `json:"orders"`
	Total  decimal.Decimal   `json:"total"`
}

// UnpaidMeals lists every PENDING meal order, newest retreat first, then by
// meal date and order time.
func (s *ReportService) UnpaidMeals(ctx context.Context) (*UnpaidMealsReport, error) {
	var orders []models.MealOrder
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Meal.Retreat").
		Preload("MenuItems.MenuItem").
		Where("status = ?", models.MealOrderStatusPending).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	sortOrdersByRetreat(orders)

	report := &UnpaidMealsReport{Orders: make([]UnpaidOrderLine, len(orders)), Total: decimal.Zero}
	for i, o := range orders {
		amount := ExpectedAmount(o)
		report.Orders[i] = UnpaidOrderLine{Order: o, Amount: amount}
		report.Total = report.Total.Add(amount)
	}
	return report, nil
}

func sortOrdersByRetreat(orders []models.MealOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].Meal, orders[j].Meal
		if !a.Retreat.StartDate.Equal(b.Retreat.StartDate) {
			return a.Retreat.StartDate.After(b.Retreat.StartDate)
		}
		return a.MealDate.Before(b.MealDate)
	})
}

// UserDuties groups one user's open assignments.
type UserDuties struct {
	User        models.User             `json:"user"`
	Assignments []models.DutyAssignment `json:"assignments"`
}

type UnacknowledgedDutiesReport struct {
	Users    []UserDuties `json:"users"`
	Total    int          `json:"total"`
	Retreats int          `json:"retreats"`
}

// UnacknowledgedDuties groups assignments that are not COMPLETED by user.
func (s *ReportService) UnacknowledgedDuties(ctx context.Context) (*UnacknowledgedDutiesReport, error) {
	var assignments []models.DutyAssignment
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Duty.Retreat").
		Where("status <> ?", models.AssignmentStatusCompleted).
		Order("assigned_at asc").
		Find(&assignments).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].Duty.Retreat.StartDate.After(assignments[j].Duty.Retreat.StartDate)
	})

	report := &UnacknowledgedDutiesReport{Total: len(assignments)}
	byUser := map[uint]int{}
	retreats := map[uint]bool{}
	for _, a := range assignments {
		retreats[a.Duty.RetreatID] = true
		idx, ok := byUser[a.UserID]
		if !ok {
			idx = len(report.Users)
			byUser[a.UserID] = idx
			report.Users = append(report.Users, UserDuties{User: a.User})
		}
		report.Users[idx].Assignments = append(report.Users[idx].Assignments, a)
	}
	report.Retreats = len(retreats)
	return report, nil
}

// MealSelectionLine is one order in the selections report. Cancelled marks
// orders of users who have since declined the retreat.
type MealSelectionLine struct {
	Order     models.MealOrder `json:"order"`
	Amount    decimal.Decimal  `json:"amount"`
	Cancelled bool             `json:"cancelled"`
}

type MealSelectionsReport struct {
	Retreats []models.Retreat     `json:"retreats"`
	Lines    []MealSelectionLine `json:"lines"`
}

// MealSelections lists orders with their selections, optionally limited to a
// retreat.
func (s *ReportService) MealSelections(ctx context.Context, retreatID *uint) (*MealSelectionsReport, error) {
	db := s.db.WithContext(ctx)

	report := &MealSelectionsReport{}
	if err := db.Order("start_date desc").Find(&report.Retreats).Error; err != nil {
		return nil, apperr.Wrap(err)
	}

	q := db.Preload("User").
		Preload("Meal.Retreat").
		Preload("MenuItems.MenuItem").
		Preload("Payment").
		Where("status IN ?", []models.MealOrderStatus{models.MealOrderStatusPending, models.MealOrderStatusPaid})
	if retreatID != nil {
		q = q.Where("retreat_id = ?", *retreatID)
	}
	var orders []models.MealOrder
	if err := q.Order("id asc").Find(&orders).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	sortOrdersByRetreat(orders)

	var cancelled []models.RetreatRegistration
	if err := db.Where("status = ?", models.RegistrationStatusCancelled).Find(&cancelled).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	type key struct{ user, retreat uint }
	declined := make(map[key]bool, len(cancelled))
	for _, reg := range cancelled {
		declined[key{reg.UserID, reg.RetreatID}] = true
	}

	report.Lines = make([]MealSelectionLine, len(orders))
	for i, o := range orders {
		report.Lines[i] = MealSelectionLine{
			Order:     o,
			Amount:    ExpectedAmount(o),
			Cancelled: declined[key{o.UserID, o.RetreatID}],
		}
	}
	return report, nil
}
