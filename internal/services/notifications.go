package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stackit/internal/models"
	"stackit/internal/ws"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// NotificationService persists notification rows and attempts
// best-effort live delivery. Persistence is the hard contract; the
// push can fail or find nobody connected without affecting it.
type NotificationService struct {
	db  *gorm.DB
	hub *ws.Hub
	log *zap.Logger
}

func NewNotificationService(db *gorm.DB, hub *ws.Hub, log *zap.Logger) *NotificationService {
	return &NotificationService{db: db, hub: hub, log: log}
}

// Notify creates the notification, recomputes the recipient's unread
// count (including the new row) and pushes both over the recipient's
// live connection if one exists.
func (s *NotificationService) Notify(ctx context.Context, userID uint, message string, typ models.NotificationType, referenceID uint) (*models.Notification, error) {
	n := models.Notification{
		UserID:      userID,
		Message:     message,
		Type:        typ,
		ReferenceID: referenceID,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}

	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		// The row exists; the live push is best-effort anyway.
		s.log.Warn("unread count failed after notify",
			zap.Uint("user_id", userID), zap.Error(err))
		return &n, nil
	}

	s.hub.Push(userID, ws.NotificationPayload{
		Message:     message,
		UnreadCount: unread,
	})
	return &n, nil
}

// ListForUser returns the user's notifications newest-first. skip
// below zero is treated as zero; limit is clamped to [1, 100] with a
// default of 50 when unset.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, skip, limit int) ([]models.Notification, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAllRead flips every unread notification for the user in a single
// statement.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
