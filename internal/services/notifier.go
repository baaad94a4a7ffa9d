package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/models"
)

// Notifier delivers reminders over the channel each user prefers.
type Notifier struct {
	db        *gorm.DB
	mailer    Mailer
	messenger Messenger
	logger    *zap.Logger
}

func NewNotifier(db *gorm.DB, mailer Mailer, messenger Messenger, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{db: db, mailer: mailer, messenger: messenger, logger: logger}
}

// Preference returns the user's stored preference or the email default.
func (n *Notifier) Preference(ctx context.Context, userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := n.db.WithContext(ctx).Where("user_id = ?", userID).Take(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserNotifPreference{
			UserID:             userID,
			Channel:            models.NotificationChannelEmail,
			WhatsappTargetType: models.WhatsappTargetTypePersonal,
		}, nil
	}
	if err != nil {
		return pref, apperr.Wrap(err)
	}
	return pref, nil
}

// SavePreference upserts a user's preference.
func (n *Notifier) SavePreference(ctx context.Context, in models.UserNotifPreference) (*models.UserNotifPreference, error) {
	switch in.Channel {
	case models.NotificationChannelEmail, models.NotificationChannelWhatsapp, models.NotificationChannelNone:
	default:
		return nil, apperr.Invalid("Unknown notification channel", map[string]string{"channel": "must be email, whatsapp or none"})
	}
	if in.WhatsappTargetType == "" {
		in.WhatsappTargetType = models.WhatsappTargetTypePersonal
	}
	if in.Channel == models.NotificationChannelWhatsapp &&
		in.WhatsappTargetType == models.WhatsappTargetTypeGroup && in.WhatsappGroupID == "" {
		return nil, apperr.Invalid("A WhatsApp group ID is required", map[string]string{"whatsapp_group_id": "required"})
	}

	pref, err := n.Preference(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	pref.Channel = in.Channel
	pref.WhatsappTargetType = in.WhatsappTargetType
	pref.WhatsappGroupID = in.WhatsappGroupID

	if err := n.db.WithContext(ctx).Save(&pref).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return &pref, nil
}

// Notify sends one message to user and reports the channel used. WhatsApp
// without a usable target falls back to email.
func (n *Notifier) Notify(ctx context.Context, user models.User, subject, body string) (models.NotificationChannel, error) {
	pref, err := n.Preference(ctx, user.ID)
	if err != nil {
		return "", err
	}

	channel := pref.Channel
	if channel == models.NotificationChannelWhatsapp {
		target := user.Phone
		if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
			target = pref.WhatsappGroupID
		}
		if target != "" && n.messenger != nil {
			if err := n.messenger.SendMessage(ctx, target, fmt.Sprintf("*%s*\n\n%s", subject, body)); err != nil {
				return channel, err
			}
			return channel, nil
		}
		n.logger.Warn("no whatsapp target, falling back to email", zap.Uint("user_id", user.ID))
		channel = models.NotificationChannelEmail
	}

	switch channel {
	case models.NotificationChannelNone:
		return channel, nil
	default:
		if n.mailer == nil {
			return models.NotificationChannelEmail, errors.New("no mailer configured")
		}
		return models.NotificationChannelEmail, n.mailer.SendEmail([]string{user.Email}, subject, body)
	}
}
