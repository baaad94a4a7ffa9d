package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type UserService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{db: db, logger: logger}
}

// List returns every user ordered by name.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("name asc, email asc").Find(&users).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("User not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &user, nil
}

// UpdateUserInput carries optional admin edits. A nil field is left alone;
// an empty Name clears the name.
type UpdateUserInput struct {
	Name *string
	Role *models.UserRole
}

func (s *UserService) Update(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = optionalString(*in.Name)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperr.Invalid("Invalid role. Must be ADMIN or PARTICIPANT", map[string]string{"role": "must be ADMIN or PARTICIPANT"})
		}
		updates["role"] = *in.Role
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	s.logger.Info("user updated", zap.Uint("user_id", id))
	return s.Get(ctx, id)
}

// ProfileInput is the profile completion form.
type ProfileInput struct {
	Name                string   `form:"name" json:"name"`
	DietaryRestrictions []string `form:"dietaryRestrictions" json:"dietaryRestrictions"`
	DietaryNotes        string   `form:"dietaryNotes" json:"dietaryNotes"`
}

// CompleteProfile stores the name and dietary restrictions. Free-text notes
// are kept as one more entry of the restriction list.
func (s *UserService) CompleteProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("Name is required", map[string]string{"name": "Name is required"})
	}

	restrictions := make([]string, 0, len(in.DietaryRestrictions)+1)
	for _, r := range in.DietaryRestrictions {
		if r = strings.TrimSpace(r); r != "" {
			restrictions = append(restrictions, r)
		}
	}
	if notes := strings.TrimSpace(in.DietaryNotes); notes != "" {
		restrictions = append(restrictions, notes)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = &name
	user.DietaryRestrictions = restrictions
	user.ProfileCompleted = true
	if err := s.db.WithContext(ctx).Select("Name", "DietaryRestrictions", "ProfileCompleted").Save(user).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return user, nil
}

// SkipProfile marks the profile completed, keeping the existing name or
// falling back to the local part of the email.
func (s *UserService) SkipProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Name == nil || strings.TrimSpace(*user.Name) == "" {
		local := strings.SplitN(user.Email, "@", 2)[0]
		user.Name = &local
	}
	user.ProfileCompleted = true
	if err := s.db.WithContext(ctx).Select("Name", "ProfileCompleted").Save(user).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return user, nil
}

// LoginWithProvider resolves the user behind an external identity. Only
// users that already exist may log in; the provider link is added on first
// use.
func (s *UserService) LoginWithProvider(ctx context.Context, provider models.OAuthProvider, providerID, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Unauthenticated("No email returned by the identity provider")
	}

	var user models.User
	err := s.db.WithContext(ctx).Preload("OAuthAccounts").Where("lower(email) = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("user_not_found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	for _, acc := range user.OAuthAccounts {
		if acc.Provider == provider {
			return &user, nil
		}
	}

	link := models.OAuthAccount{UserID: user.ID, Provider: provider, ProviderID: providerID}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.Wrap(err)
	}
	user.OAuthAccounts = append(user.OAuthAccounts, link)
	s.logger.Info("linked oauth account", zap.Uint("user_id", user.ID), zap.String("provider", string(provider)))
	return &user, nil
}

// UpsertOutcome reports what an idempotent user write did.
type UpsertOutcome string

const (
	UpsertCreated   UpsertOutcome = "created"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// Upsert creates the user or brings name and role in line. Existing users
// keep their profile state.
func (s *UserService) Upsert(ctx context.Context, email, name string, role models.UserRole) (*models.User, UpsertOutcome, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return nil, "", apperr.Invalid(fmt.Sprintf("Invalid email %q", email), nil)
	}
	if !role.Valid() {
		return nil, "", apperr.Invalid("Invalid role. Must be ADMIN or PARTICIPANT", nil)
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err := db.Where("email = ?", email).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Email: email, Name: optionalString(name), Role: role}
		if err := db.Create(&user).Error; err != nil {
			return nil, "", apperr.Wrap(err)
		}
		return &user, UpsertCreated, nil
	case err != nil:
		return nil, "", apperr.Wrap(err)
	}

	if user.Role == role && user.DisplayName() == name {
		return &user, UpsertUnchanged, nil
	}
	user.Role = role
	user.Name = optionalString(name)
	if err := db.Model(&user).Updates(map[string]interface{}{"name": user.Name, "role": role}).Error; err != nil {
		return nil, "", apperr.Wrap(err)
	}
	return &user, UpsertUpdated, nil
}

// EnsureAdmin creates or promotes the configured admin. Safe to run on every
// deploy.
func (s *UserService) EnsureAdmin(ctx context.Context, email, name string) (*models.User, UpsertOutcome, error) {
	if strings.TrimSpace(email) == "" {
		return nil, "", apperr.Invalid("Admin email is not configured", nil)
	}
	user, outcome, err := s.Upsert(ctx, email, name, models.UserRoleAdmin)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("admin ensured", zap.String("email", user.Email), zap.String("outcome", string(outcome)))
	return user, outcome, nil
}

// ImportResult counts the outcome of a user CSV import.
type ImportResult struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   []string
}

// ImportCSV upserts users from a name,email CSV. Users whose name appears in
// admins become ADMIN, everyone else PARTICIPANT.
func (s *UserService) ImportCSV(ctx context.Context, r io.Reader, admins []string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.Invalid("CSV must have a header row", nil)
	}
	nameIdx, emailIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameIdx = i
		case "email":
			emailIdx = i
		}
	}
	if nameIdx == -1 || emailIdx == -1 {
		return nil, apperr.Invalid("CSV must have 'name' and 'email' columns", nil)
	}

	adminSet := make(map[string]bool, len(admins))
	for _, a := range admins {
		adminSet[strings.TrimSpace(a)] = true
	}

	res := &ImportResult{}
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperr.Invalid(fmt.Sprintf("CSV parsing errors: %v", err), nil)
		}
		if isBlankRecord(rec) {
			continue
		}
		name, email := field(rec, nameIdx), field(rec, emailIdx)
		if name == "" || !strings.Contains(email, "@") {
			res.Skipped = append(res.Skipped, fmt.Sprintf("Row %d: missing name or invalid email", line))
			continue
		}

		role := models.UserRoleParticipant
		if adminSet[name] {
			role = models.UserRoleAdmin
		}
		_, outcome, err := s.Upsert(ctx, email, name, role)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case UpsertCreated:
			res.Created++
		case UpsertUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}
	return res, nil
}
