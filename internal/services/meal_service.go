package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

type MealService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewMealService(db *gorm.DB, logger *zap.Logger) *MealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealService{db: db, logger: logger, now: time.Now}
}

type MealInput struct {
	Name        string
	Description string
	Price       float64
	MealDate    time.Time
	Available   bool
}

func (s *MealService) CreateMeal(ctx context.Context, retreatID uint, in MealInput) (*models.Meal, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Name is required"
	}
	if in.Price < 0 {
		fields["price"] = "Price must be zero or more"
	}
	if in.MealDate.IsZero() {
		fields["mealDate"] = "Meal date is required"
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid("Invalid meal", fields)
	}

	db := s.db.WithContext(ctx)
	if err := db.Select("id").First(&models.Retreat{}, retreatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Retreat not found")
		}
		return nil, apperr.Wrap(err)
	}

	meal := models.Meal{
		RetreatID:   retreatID,
		Name:        strings.TrimSpace(in.Name),
		Description: optionalString(in.Description),
		Price:       in.Price,
		MealDate:    in.MealDate,
		Available:   in.Available,
	}
	if err := db.Create(&meal).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return &meal, nil
}

// DeleteMeal removes a meal of the retreat. Meals with paid orders are kept.
func (s *MealService) DeleteMeal(ctx context.Context, retreatID, mealID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meal models.Meal
		if err := tx.Where("id = ? AND retreat_id = ?", mealID, retreatID).Take(&meal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundErr("Meal not found")
			}
			return apperr.Wrap(err)
		}

		var paid int64
		if err := tx.Model(&models.MealOrder{}).
			Where("meal_id = ? AND status = ?", mealID, models.MealOrderStatusPaid).
			Count(&paid).Error; err != nil {
			return apperr.Wrap(err)
		}
		if paid > 0 {
			return apperr.Invalid("Cannot delete a meal with paid orders", nil)
		}

		orderIDs := tx.Model(&models.MealOrder{}).Select("id").Where("meal_id = ?", mealID)
		steps := []func() error{
			func() error { return tx.Where("meal_order_id IN (?)", orderIDs).Delete(&models.Payment{}).Error },
			func() error { return tx.Where("meal_order_id IN (?)", orderIDs).Delete(&models.MealOrderMenuItem{}).Error },
			func() error { return tx.Where("meal_id = ?", mealID).Delete(&models.MealOrder{}).Error },
			func() error { return tx.Where("meal_id = ?", mealID).Delete(&models.MenuItem{}).Error },
			func() error { return tx.Delete(&meal).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return apperr.Wrap(err)
			}
		}
		return nil
	})
}

type MenuItemInput struct {
	Name             string
	Description      string
	RequiresQuantity bool
}

func (s *MealService) CreateMenuItem(ctx context.Context, retreatID, mealID uint, in MenuItemInput) (*models.MenuItem, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Invalid("Name is required", map[string]string{"name": "Name is required"})
	}

	db := s.db.WithContext(ctx)
	if _, err := s.mealOfRetreat(db, retreatID, mealID); err != nil {
		return nil, err
	}

	item := models.MenuItem{
		MealID:           mealID,
		Name:             strings.TrimSpace(in.Name),
		Description:      optionalString(in.Description),
		RequiresQuantity: in.RequiresQuantity,
	}
	if err := db.Create(&item).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return &item, nil
}

func (s *MealService) DeleteMenuItem(ctx context.Context, retreatID, mealID, menuItemID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.mealOfRetreat(tx, retreatID, mealID); err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", menuItemID).Delete(&models.MealOrderMenuItem{}).Error; err != nil {
			return apperr.Wrap(err)
		}
		res := tx.Where("id = ? AND meal_id = ?", menuItemID, mealID).Delete(&models.MenuItem{})
		if res.Error != nil {
			return apperr.Wrap(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFoundErr("Menu item not found")
		}
		return nil
	})
}

func (s *MealService) mealOfRetreat(db *gorm.DB, retreatID, mealID uint) (*models.Meal, error) {
	var meal models.Meal
	err := db.Preload("MenuItems").Where("id = ? AND retreat_id = ?", mealID, retreatID).Take(&meal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Meal not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &meal, nil
}

// Selection is one chosen menu item of an order.
type Selection struct {
	MenuItemID uint `json:"menuItemId" validate:"required"`
	Quantity   *int `json:"quantity"`
}

// OrderOutcome reports what PlaceOrder did.
type OrderOutcome string

const (
	OrderCreated   OrderOutcome = "created"
	OrderUpdated   OrderOutcome = "updated"
	OrderCancelled OrderOutcome = "cancelled"
	OrderUnchanged OrderOutcome = "unchanged"
)

// PlaceOrder creates, replaces or (with no selections) cancels the user's
// order for a meal.
func (s *MealService) PlaceOrder(ctx context.Context, userID, retreatID, mealID uint, selections []Selection) (OrderOutcome, error) {
	var outcome OrderOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meal, err := s.mealOfRetreat(tx, retreatID, mealID)
		if err != nil {
			return err
		}
		if !meal.Available {
			return apperr.Invalid("Meal is not available for ordering", nil)
		}

		var retreat models.Retreat
		if err := tx.First(&retreat, retreatID).Error; err != nil {
			return apperr.Wrap(err)
		}
		if retreat.OrderingClosed(s.now()) {
			return apperr.Invalid("Ordering deadline has passed", nil)
		}

		var existing *models.MealOrder
		var found models.MealOrder
		err = tx.Preload("Payment").Where("user_id = ? AND meal_id = ?", userID, mealID).Take(&found).Error
		switch {
		case err == nil:
			existing = &found
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.Wrap(err)
		}

		if len(selections) == 0 {
			if existing == nil {
				outcome = OrderUnchanged
				return nil
			}
			if existing.Status == models.MealOrderStatusPaid || existing.Payment != nil {
				return apperr.Invalid("Cannot cancel a paid order. Please contact an administrator for a refund.", nil)
			}
			if err := tx.Where("meal_order_id = ?", existing.ID).Delete(&models.MealOrderMenuItem{}).Error; err != nil {
				return apperr.Wrap(err)
			}
			if err := tx.Delete(&models.MealOrder{}, existing.ID).Error; err != nil {
				return apperr.Wrap(err)
			}
			outcome = OrderCancelled
			return nil
		}

		if err := ValidateSelections(*meal, selections); err != nil {
			return err
		}

		if existing != nil {
			if existing.Status == models.MealOrderStatusPaid {
				return apperr.Invalid("Cannot change a paid order. Please contact an administrator.", nil)
			}
			if err := tx.Where("meal_order_id = ?", existing.ID).Delete(&models.MealOrderMenuItem{}).Error; err != nil {
				return apperr.Wrap(err)
			}
			rows := selectionRows(existing.ID, selections)
			if err := tx.Create(&rows).Error; err != nil {
				return apperr.Wrap(err)
			}
			outcome = OrderUpdated
			return nil
		}

		order := models.MealOrder{
			UserID:    userID,
			MealID:    mealID,
			RetreatID: retreatID,
			Status:    models.MealOrderStatusPending,
		}
		if err := tx.Create(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Invalid("An order for this meal already exists", nil)
			}
			return apperr.Wrap(err)
		}
		rows := selectionRows(order.ID, selections)
		if err := tx.Create(&rows).Error; err != nil {
			return apperr.Wrap(err)
		}
		outcome = OrderCreated
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("meal order placed",
		zap.Uint("user_id", userID), zap.Uint("meal_id", mealID), zap.String("outcome", string(outcome)))
	return outcome, nil
}

// ValidateSelections checks that every selection belongs to the meal and that
// items requiring a quantity carry a positive one.
func ValidateSelections(meal models.Meal, selections []Selection) error {
	items := make(map[uint]models.MenuItem, len(meal.MenuItems))
	for _, item := range meal.MenuItems {
		items[item.ID] = item
	}

	seen := make(map[uint]bool, len(selections))
	for _, sel := range selections {
		item, ok := items[sel.MenuItemID]
		if !ok {
			return apperr.Invalid(fmt.Sprintf("Menu item %d does not belong to this meal", sel.MenuItemID), nil)
		}
		if seen[sel.MenuItemID] {
			return apperr.Invalid(fmt.Sprintf("Menu item %s was selected twice", item.Name), nil)
		}
		seen[sel.MenuItemID] = true
		if item.RequiresQuantity && (sel.Quantity == nil || *sel.Quantity <= 0) {
			return apperr.Invalid(fmt.Sprintf("Quantity must be greater than zero for %s", item.Name),
				map[string]string{fmt.Sprintf("quantity_%d", item.ID): "must be greater than zero"})
		}
	}
	return nil
}

func selectionRows(orderID uint, selections []Selection) []models.MealOrderMenuItem {
	rows := make([]models.MealOrderMenuItem, len(selections))
	for i, sel := range selections {
		rows[i] = models.MealOrderMenuItem{
			MealOrderID: orderID,
			MenuItemID:  sel.MenuItemID,
			Quantity:    sel.Quantity,
		}
	}
	return rows
}

// UserOrders returns the user's orders for a retreat keyed by meal.
func (s *MealService) UserOrders(ctx context.Context, userID, retreatID uint) (map[uint]models.MealOrder, error) {
	var orders []models.MealOrder
	err := s.db.WithContext(ctx).
		Preload("Meal").
		Preload("MenuItems.MenuItem").
		Where("user_id = ? AND retreat_id = ?", userID, retreatID).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	byMeal := make(map[uint]models.MealOrder, len(orders))
	for _, o := range orders {
		byMeal[o.MealID] = o
	}
	return byMeal, nil
}

// Meal loads one meal of a retreat with its menu items.
func (s *MealService) Meal(ctx context.Context, retreatID, mealID uint) (*models.Meal, error) {
	return s.mealOfRetreat(s.db.WithContext(ctx), retreatID, mealID)
}

// RetreatOrders lists every order of a retreat for the admin view.
func (s *MealService) RetreatOrders(ctx context.Context, retreatID uint) ([]models.MealOrder, error) {
	var orders []models.MealOrder
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Meal").
		Preload("MenuItems.MenuItem").
		Where("retreat_id = ?", retreatID).
		Order("meal_id asc, id asc").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return orders, nil
}
