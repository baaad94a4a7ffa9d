package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type DutyService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewDutyService(db *gorm.DB, logger *zap.Logger) *DutyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DutyService{db: db, logger: logger, now: time.Now}
}

func dutyOfRetreat(db *gorm.DB, retreatID, dutyID uint) (*models.Duty, error) {
	var duty models.Duty
	err := db.Where("id = ? AND retreat_id = ?", dutyID, retreatID).Take(&duty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Duty not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &duty, nil
}

// CreateDuty adds a single duty to a retreat.
func (s *DutyService) CreateDuty(ctx context.Context, retreatID uint, title, description string) (*models.Duty, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperr.Invalid("Title is required", map[string]string{"title": "Title is required"})
	}
	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Retreat{}, retreatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Retreat not found")
		}
		return nil, apperr.Wrap(err)
	}
	duty := models.Duty{
		RetreatID:   retreatID,
		Title:       strings.TrimSpace(title),
		Description: optionalString(description),
		Status:      models.DutyStatusPending,
	}
	if err := db.Create(&duty).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return &duty, nil
}

// Assign puts a user on a duty. Re-assigning resets a completed assignment.
func (s *DutyService) Assign(ctx context.Context, retreatID, dutyID, userID uint) (*models.Duty, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := dutyOfRetreat(tx, retreatID, dutyID); err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.User{}, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundErr("User not found")
			}
			return apperr.Wrap(err)
		}

		var assignment models.DutyAssignment
		err := tx.Where("duty_id = ? AND user_id = ?", dutyID, userID).Take(&assignment).Error
		switch {
		case err == nil:
			if err := tx.Model(&assignment).Updates(map[string]interface{}{
				"status":       models.AssignmentStatusAssigned,
				"completed_at": nil,
			}).Error; err != nil {
				return apperr.Wrap(err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.DutyAssignment{
				DutyID:     dutyID,
				UserID:     userID,
				Status:     models.AssignmentStatusAssigned,
				AssignedAt: s.now(),
			}).Error; err != nil {
				return apperr.Wrap(err)
			}
		default:
			return apperr.Wrap(err)
		}
		return syncDutyStatus(tx, dutyID)
	})
	if err != nil {
		return nil, err
	}
	return s.duty(ctx, dutyID)
}

// Unassign removes a user from a duty.
func (s *DutyService) Unassign(ctx context.Context, retreatID, dutyID, userID uint) (*models.Duty, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := dutyOfRetreat(tx, retreatID, dutyID); err != nil {
			return err
		}
		if err := tx.Where("duty_id = ? AND user_id = ?", dutyID, userID).Delete(&models.DutyAssignment{}).Error; err != nil {
			return apperr.Wrap(err)
		}
		return syncDutyStatus(tx, dutyID)
	})
	if err != nil {
		return nil, err
	}
	return s.duty(ctx, dutyID)
}

// syncDutyStatus sets ASSIGNED or PENDING from the assignment count.
func syncDutyStatus(tx *gorm.DB, dutyID uint) error {
	var count int64
	if err := tx.Model(&models.DutyAssignment{}).Where("duty_id = ?", dutyID).Count(&count).Error; err != nil {
		return apperr.Wrap(err)
	}
	status := models.DutyStatusPending
	if count > 0 {
		status = models.DutyStatusAssigned
	}
	if err := tx.Model(&models.Duty{}).Where("id = ?", dutyID).Update("status", status).Error; err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *DutyService) duty(ctx context.Context, dutyID uint) (*models.Duty, error) {
	var duty models.Duty
	if err := s.db.WithContext(ctx).Preload("Assignments.User").First(&duty, dutyID).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return &duty, nil
}

// SignOff acknowledges the user's assignment. The duty completes once every
// assignment is acknowledged.
func (s *DutyService) SignOff(ctx context.Context, userID, retreatID, dutyID uint) (*models.DutyAssignment, error) {
	var assignment models.DutyAssignment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := dutyOfRetreat(tx, retreatID, dutyID); err != nil {
			return err
		}

		err := tx.Where("duty_id = ? AND user_id = ?", dutyID, userID).Take(&assignment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundErr("You are not assigned to this duty")
		}
		if err != nil {
			return apperr.Wrap(err)
		}
		if assignment.Status == models.AssignmentStatusCompleted {
			return apperr.Invalid("You have already acknowledged this duty", nil)
		}

		now := s.now()
		assignment.Status = models.AssignmentStatusCompleted
		assignment.CompletedAt = &now
		if err := tx.Model(&assignment).Updates(map[string]interface{}{
			"status":       assignment.Status,
			"completed_at": now,
		}).Error; err != nil {
			return apperr.Wrap(err)
		}

		var open int64
		if err := tx.Model(&models.DutyAssignment{}).
			Where("duty_id = ? AND status <> ?", dutyID, models.AssignmentStatusCompleted).
			Count(&open).Error; err != nil {
			return apperr.Wrap(err)
		}
		if open == 0 {
			if err := tx.Model(&models.Duty{}).Where("id = ?", dutyID).Update("status", models.DutyStatusCompleted).Error; err != nil {
				return apperr.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DutyRow is one parsed line of a duty upload.
type DutyRow struct {
	Title       string
	Description string
}

// ParseDutyCSV reads duties from CSV. The header row decides the columns:
// the first header mentioning title, name or duty holds the title, and the
// first mentioning description, desc or details holds the description. Rows
// without a title are reported and skipped.
func ParseDutyCSV(r io.Reader) ([]DutyRow, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperr.Invalid(fmt.Sprintf("CSV parsing errors: %v", err), nil)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}

	if len(records) < 2 {
		return nil, nil, apperr.Invalid("CSV must have at least a header row and one data row", nil)
	}

	titleIdx, descIdx := -1, -1
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if titleIdx == -1 && (strings.Contains(h, "title") || strings.Contains(h, "name") || strings.Contains(h, "duty")) {
			titleIdx = i
		}
		if descIdx == -1 && (strings.Contains(h, "description") || strings.Contains(h, "desc") || strings.Contains(h, "details")) {
			descIdx = i
		}
	}
	if titleIdx == -1 {
		return nil, nil, apperr.Invalid("CSV must have a 'title' or 'name' column", nil)
	}

	var rows []DutyRow
	var rowErrors []string
	for i, rec := range records[1:] {
		title := field(rec, titleIdx)
		if title == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Missing title", i+2))
			continue
		}
		rows = append(rows, DutyRow{Title: title, Description: field(rec, descIdx)})
	}
	return rows, rowErrors, nil
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// UploadResult summarises a CSV import.
type UploadResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportCSV creates PENDING duties from an uploaded CSV in one transaction.
func (s *DutyService) ImportCSV(ctx context.Context, retreatID uint, r io.Reader) (*UploadResult, error) {
	rows, rowErrors, err := ParseDutyCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperr.AppError{
			Kind:      apperr.ValidationFailed,
			PublicMsg: "No valid duties found",
			Fields:    rowErrorFields(rowErrors),
		}
	}

	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Retreat{}, retreatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Retreat not found")
		}
		return nil, apperr.Wrap(err)
	}

	duties := make([]models.Duty, len(rows))
	for i, row := range rows {
		duties[i] = models.Duty{
			RetreatID:   retreatID,
			Title:       row.Title,
			Description: optionalString(row.Description),
			Status:      models.DutyStatusPending,
		}
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&duties).Error
	}); err != nil {
		return nil, apperr.Wrap(err)
	}

	s.logger.Info("duties imported", zap.Uint("retreat_id", retreatID), zap.Int("created", len(duties)), zap.Int("skipped", len(rowErrors)))
	return &UploadResult{Created: len(duties), Errors: rowErrors}, nil
}

func rowErrorFields(rowErrors []string) map[string]string {
	fields := make(map[string]string, len(rowErrors))
	for i, e := range rowErrors {
		fields[fmt.Sprintf("row_%d", i)] = e
	}
	return fields
}
