package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

// AcceptService enforces "at most one accepted comment per post". The
// accepted-elsewhere check and the flag write happen as one conditional
// UPDATE, so concurrent accepts on the same post cannot both succeed.
type AcceptService struct {
	db    *gorm.DB
	karma *KarmaService
}

func NewAcceptService(db *gorm.DB, karma *KarmaService) *AcceptService {
	return &AcceptService{db: db, karma: karma}
}

// Toggle flips the accepted flag on a comment. Only the post owner or
// an admin may do so. Accepting awards karma to the comment author in
// the same transaction; unaccepting changes nothing but the flag.
// newlyAccepted tells the caller whether an ANSWER notification is due.
func (s *AcceptService) Toggle(ctx context.Context, actor *models.User, commentID uint) (comment *models.Comment, newlyAccepted bool, err error) {
	var c models.Comment
	var flipped bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("comment %d not found", commentID)
			}
			return err
		}

		var post models.Post
		if err := tx.First(&post, c.PostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("post %d not found", c.PostID)
			}
			return err
		}
		if post.UserID != actor.ID && !actor.IsAdmin() {
			return apperr.Forbidden("only the post owner or admins can accept comments")
		}

		if c.IsAccepted {
			return s.unaccept(tx, &c)
		}
		var err error
		flipped, err = s.accept(ctx, tx, &c)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return &c, flipped, nil
}

func (s *AcceptService) unaccept(tx *gorm.DB, c *models.Comment) error {
	// No karma adjustment and no notification on unaccept.
	res := tx.Model(&models.Comment{}).
		Where("id = ? AND is_accepted = ?", c.ID, true).
		Update("is_accepted", false)
	if res.Error != nil {
		return res.Error
	}
	c.IsAccepted = false
	return nil
}

func (s *AcceptService) accept(ctx context.Context, tx *gorm.DB, c *models.Comment) (bool, error) {
	// The NOT EXISTS guard and the flag write are a single statement:
	// two racing accepts on the same post serialize at the storage
	// layer and only one row is ever flipped.
	other := tx.Model(&models.Comment{}).
		Select("id").
		Where("post_id = ? AND is_accepted = ?", c.PostID, true)
	res := tx.Model(&models.Comment{}).
		Where("id = ? AND is_accepted = ?", c.ID, false).
		Where("NOT EXISTS (?)", other).
		Update("is_accepted", true)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		var accepted models.Comment
		err := tx.Where("post_id = ? AND is_accepted = ?", c.PostID, true).First(&accepted).Error
		switch {
		case err == nil && accepted.ID == c.ID:
			// A concurrent call accepted this same comment; nothing
			// left to do, and that call owns the karma award.
			c.IsAccepted = true
			return false, nil
		case err == nil:
			return false, apperr.PreconditionFailed("another comment is already accepted for this post")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return false, apperr.Conflict("accept state of comment %d changed concurrently", c.ID)
		default:
			return false, err
		}
	}

	c.IsAccepted = true
	if _, err := s.karma.WithTx(tx).Apply(ctx, c.UserID, KarmaCommentAccepted, ActionCommentAccepted); err != nil {
		return false, err
	}
	return true, nil
}
