package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type RetreatService struct {
	db     *gorm.DB
	cache  *RedisCache
	logger *zap.Logger
}

func NewRetreatService(db *gorm.DB, cache *RedisCache, logger *zap.Logger) *RetreatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetreatService{db: db, cache: cache, logger: logger}
}

// List returns retreats ordered by start date, most recent first.
func (s *RetreatService) List(ctx context.Context) ([]models.Retreat, error) {
	var retreats []models.Retreat
	if err := s.db.WithContext(ctx).Order("start_date desc").Find(&retreats).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return retreats, nil
}

// Get loads a retreat with its meals, menu items and duties.
func (s *RetreatService) Get(ctx context.Context, id uint) (*models.Retreat, error) {
	var retreat models.Retreat
	err := s.db.WithContext(ctx).
		Preload("Meals", func(db *gorm.DB) *gorm.DB { return db.Order("meal_date asc, id asc") }).
		Preload("Meals.MenuItems", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Duties", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Duties.Assignments.User").
		First(&retreat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Retreat not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &retreat, nil
}

// CreateRetreatInput is the admin form for a new retreat.
type CreateRetreatInput struct {
	Name              string
	Description       string
	Location          string
	StartDate         time.Time
	EndDate           time.Time
	MealOrderDeadline *time.Time
	Status            models.RetreatStatus
	CopyFromID        *uint
	CopyMeals         bool
	CopyDuties        bool
}

// Create stores a retreat, optionally copying meals (with menu items) and
// duties (with assignments reset to ASSIGNED) from another retreat.
func (s *RetreatService) Create(ctx context.Context, in CreateRetreatInput) (*models.Retreat, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Name is required"
	}
	if in.StartDate.IsZero() {
		fields["startDate"] = "Start date is required"
	}
	if in.EndDate.IsZero() {
		fields["endDate"] = "End date is required"
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && !in.StartDate.Before(in.EndDate) {
		fields["endDate"] = "End date must be after start date"
	}
	status := in.Status
	if status == "" {
		status = models.RetreatStatusUpcoming
	}
	switch status {
	case models.RetreatStatusUpcoming, models.RetreatStatusActive, models.RetreatStatusCompleted, models.RetreatStatusCancelled:
	default:
		fields["status"] = "Unknown status"
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid("Invalid retreat", fields)
	}

	retreat := models.Retreat{
		Name:              strings.TrimSpace(in.Name),
		Description:       optionalString(in.Description),
		Location:          optionalString(in.Location),
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		MealOrderDeadline: in.MealOrderDeadline,
		Status:            status,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&retreat).Error; err != nil {
			return err
		}
		if in.CopyFromID == nil || (!in.CopyMeals && !in.CopyDuties) {
			return nil
		}

		var source models.Retreat
		err := tx.Preload("Meals.MenuItems").Preload("Duties.Assignments").First(&source, *in.CopyFromID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundErr("Source retreat not found")
		}
		if err != nil {
			return err
		}

		if in.CopyMeals {
			if err := copyMeals(tx, source, retreat); err != nil {
				return err
			}
		}
		if in.CopyDuties {
			if err := copyDuties(tx, source, retreat.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	s.logger.Info("retreat created", zap.Uint("retreat_id", retreat.ID), zap.String("name", retreat.Name))
	return &retreat, nil
}

// copyMeals shifts meal dates by the distance between the two start dates.
func copyMeals(tx *gorm.DB, source, target models.Retreat) error {
	shift := target.StartDate.Sub(source.StartDate)
	for _, meal := range source.Meals {
		clone := models.Meal{
			RetreatID:   target.ID,
			Name:        meal.Name,
			Description: meal.Description,
			Price:       meal.Price,
			MealDate:    meal.MealDate.Add(shift),
			Available:   meal.Available,
		}
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		for _, item := range meal.MenuItems {
			if err := tx.Create(&models.MenuItem{
				MealID:           clone.ID,
				Name:             item.Name,
				Description:      item.Description,
				RequiresQuantity: item.RequiresQuantity,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func copyDuties(tx *gorm.DB, source models.Retreat, targetID uint) error {
	now := time.Now()
	for _, duty := range source.Duties {
		status := models.DutyStatusPending
		if len(duty.Assignments) > 0 {
			status = models.DutyStatusAssigned
		}
		clone := models.Duty{
			RetreatID:   targetID,
			Title:       duty.Title,
			Description: duty.Description,
			Status:      status,
		}
		if err := tx.Create(&clone).Error; err != nil {
			return err
		}
		for _, a := range duty.Assignments {
			if err := tx.Create(&models.DutyAssignment{
				DutyID:     clone.ID,
				UserID:     a.UserID,
				Status:     models.AssignmentStatusAssigned,
				AssignedAt: now,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Attend registers the user, reviving a cancelled registration.
func (s *RetreatService) Attend(ctx context.Context, userID, retreatID uint) error {
	db := s.db.WithContext(ctx)

	if err := db.Select("id").First(&models.Retreat{}, retreatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundErr("Retreat not found")
		}
		return apperr.Wrap(err)
	}

	var reg models.RetreatRegistration
	err := db.Where("user_id = ? AND retreat_id = ?", userID, retreatID).Take(&reg).Error
	switch {
	case err == nil:
		if reg.Status == models.RegistrationStatusCancelled {
			if err := db.Model(&reg).Update("status", models.RegistrationStatusRegistered).Error; err != nil {
				return apperr.Wrap(err)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		reg = models.RetreatRegistration{UserID: userID, RetreatID: retreatID, Status: models.RegistrationStatusRegistered}
		if err := db.Create(&reg).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Wrap(err)
		}
	default:
		return apperr.Wrap(err)
	}

	s.invalidateCount(ctx, retreatID)
	return nil
}

// Decline cancels the user's registration. The row is kept.
func (s *RetreatService) Decline(ctx context.Context, userID, retreatID uint) error {
	db := s.db.WithContext(ctx)

	var reg models.RetreatRegistration
	err := db.Where("user_id = ? AND retreat_id = ?", userID, retreatID).Take(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundErr("Not currently attending this retreat")
	}
	if err != nil {
		return apperr.Wrap(err)
	}

	if err := db.Model(&reg).Update("status", models.RegistrationStatusCancelled).Error; err != nil {
		return apperr.Wrap(err)
	}

	s.invalidateCount(ctx, retreatID)
	return nil
}

// Registration returns the user's registration for a retreat, or nil.
func (s *RetreatService) Registration(ctx context.Context, userID, retreatID uint) (*models.RetreatRegistration, error) {
	var reg models.RetreatRegistration
	err := s.db.WithContext(ctx).Where("user_id = ? AND retreat_id = ?", userID, retreatID).Take(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &reg, nil
}

// AttendingIDs returns the retreats the user is registered for.
func (s *RetreatService) AttendingIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.RetreatRegistration{}).
		Where("user_id = ? AND status = ?", userID, models.RegistrationStatusRegistered).
		Pluck("retreat_id", &ids).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	attending := make(map[uint]bool, len(ids))
	for _, id := range ids {
		attending[id] = true
	}
	return attending, nil
}

// ParticipantCount counts registrations that are not cancelled.
func (s *RetreatService) ParticipantCount(ctx context.Context, retreatID uint) (int64, error) {
	return GetOrSet(s.cache, ctx, ParticipantCountKey(retreatID), participantCountTTL, func() (int64, error) {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.RetreatRegistration{}).
			Where("retreat_id = ? AND status <> ?", retreatID, models.RegistrationStatusCancelled).
			Count(&count).Error
		return count, err
	})
}

// ParticipantCounts returns active participant counts keyed by retreat.
func (s *RetreatService) ParticipantCounts(ctx context.Context, retreatIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(retreatIDs))
	for _, id := range retreatIDs {
		n, err := s.ParticipantCount(ctx, id)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		counts[id] = n
	}
	return counts, nil
}

func (s *RetreatService) invalidateCount(ctx context.Context, retreatID uint) {
	if err := s.cache.Delete(ctx, ParticipantCountKey(retreatID)); err != nil {
		s.logger.Warn("failed to invalidate participant count", zap.Uint("retreat_id", retreatID), zap.Error(err))
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
