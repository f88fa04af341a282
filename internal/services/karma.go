package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

// Karma action descriptions, recorded on every ledger entry.
const (
	ActionPostCreated      = "post created"
	ActionCommentCreated   = "comment created"
	ActionCommentAccepted  = "comment accepted"
	ActionCommentUpvoted   = "comment upvoted"
	ActionCommentDownvoted = "comment downvoted"
	ActionUpvoteRemoved    = "upvote removed"
	ActionDownvoteRemoved  = "downvote removed"
)

// Karma point values for content-interaction events.
const (
	KarmaPostCreated      = 5
	KarmaCommentCreated   = 2
	KarmaCommentAccepted  = 15
	KarmaCommentUpvoted   = 10
	KarmaCommentDownvoted = -2
)

// KarmaService is the only writer of User.Karma. Every adjustment goes
// through Apply, which records a KarmaLog row and updates the balance
// in one transaction.
type KarmaService struct {
	db *gorm.DB
}

func NewKarmaService(db *gorm.DB) *KarmaService {
	return &KarmaService{db: db}
}

// WithTx returns a ledger bound to an existing transaction so callers
// can fold karma updates into their own atomic unit.
func (s *KarmaService) WithTx(tx *gorm.DB) *KarmaService {
	return &KarmaService{db: tx}
}

// Apply adds amount (positive or negative, no floor) to the user's
// karma and returns the new total.
func (s *KarmaService) Apply(ctx context.Context, userID uint, amount int, action string) (int, error) {
	var total int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.KarmaLog{
			UserID: userID,
			Amount: amount,
			Action: action,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("karma", gorm.Expr("karma + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("user %d not found", userID)
		}

		return tx.Model(&models.User{}).
			Select("karma").
			Where("id = ?", userID).
			Scan(&total).Error
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return 0, appErr
		}
		return 0, err
	}
	return total, nil
}
