package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

// VoteService owns the vote state machine for a single (user, comment)
// pair: create on first cast, delete on a repeated cast of the same
// type, mutate in place on a type switch. Score and karma move in the
// same transaction as the vote row.
type VoteService struct {
	db    *gorm.DB
	karma *KarmaService
}

func NewVoteService(db *gorm.DB, karma *KarmaService) *VoteService {
	return &VoteService{db: db, karma: karma}
}

// Cast applies requested to the voter's vote on the comment and returns
// the comment's new state. Concurrent mutation of the same vote row is
// retried once, then surfaced as a precondition failure.
func (s *VoteService) Cast(ctx context.Context, voterID, commentID uint, requested models.VoteType) (*models.Comment, error) {
	if !requested.Valid() {
		return nil, apperr.PreconditionFailed("unknown vote type %q", requested)
	}

	comment, err := s.cast(ctx, voterID, commentID, requested)
	if apperr.KindOf(err) == apperr.KindConflict {
		comment, err = s.cast(ctx, voterID, commentID, requested)
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.PreconditionFailed("vote on comment %d is being modified concurrently", commentID)
		}
	}
	return comment, err
}

func (s *VoteService) cast(ctx context.Context, voterID, commentID uint, requested models.VoteType) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("comment %d not found", commentID)
			}
			return err
		}
		ledger := s.karma.WithTx(tx)

		var existing models.CommentVote
		err := tx.Where("user_id = ? AND comment_id = ?", voterID, commentID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return s.createVote(ctx, tx, ledger, &comment, voterID, requested)
		case err != nil:
			return err
		case existing.VoteType == requested:
			return s.removeVote(ctx, tx, ledger, &comment, &existing)
		default:
			return s.switchVote(ctx, tx, ledger, &comment, &existing, requested)
		}
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *VoteService) createVote(ctx context.Context, tx *gorm.DB, ledger *KarmaService, comment *models.Comment, voterID uint, requested models.VoteType) error {
	vote := models.CommentVote{
		UserID:    voterID,
		CommentID: comment.ID,
		VoteType:  requested,
	}
	if err := tx.Create(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another cast by the same user slipped in first.
			return apperr.Conflict("vote already exists for comment %d", comment.ID)
		}
		return err
	}

	if err := s.bumpScore(tx, comment, requested.ScoreValue()); err != nil {
		return err
	}

	var err error
	if requested == models.VoteTypeUp {
		_, err = ledger.Apply(ctx, comment.UserID, KarmaCommentUpvoted, ActionCommentUpvoted)
	} else {
		_, err = ledger.Apply(ctx, comment.UserID, KarmaCommentDownvoted, ActionCommentDownvoted)
	}
	return err
}

func (s *VoteService) removeVote(ctx context.Context, tx *gorm.DB, ledger *KarmaService, comment *models.Comment, existing *models.CommentVote) error {
	res := tx.Where("id = ? AND vote_type = ?", existing.ID, existing.VoteType).
		Delete(&models.CommentVote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("vote %d changed underneath us", existing.ID)
	}

	if err := s.bumpScore(tx, comment, -existing.VoteType.ScoreValue()); err != nil {
		return err
	}

	var err error
	if existing.VoteType == models.VoteTypeUp {
		_, err = ledger.Apply(ctx, comment.UserID, -KarmaCommentUpvoted, ActionUpvoteRemoved)
	} else {
		_, err = ledger.Apply(ctx, comment.UserID, -KarmaCommentDownvoted, ActionDownvoteRemoved)
	}
	return err
}

func (s *VoteService) switchVote(ctx context.Context, tx *gorm.DB, ledger *KarmaService, comment *models.Comment, existing *models.CommentVote, requested models.VoteType) error {
	res := tx.Model(&models.CommentVote{}).
		Where("id = ? AND vote_type = ?", existing.ID, existing.VoteType).
		Update("vote_type", requested)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("vote %d changed underneath us", existing.ID)
	}

	if err := s.bumpScore(tx, comment, 2*requested.ScoreValue()); err != nil {
		return err
	}

	// Two discrete ledger applications: undo the old direction, then
	// apply the new one. Kept as two entries so the audit trail shows
	// both movements.
	if existing.VoteType == models.VoteTypeUp {
		if _, err := ledger.Apply(ctx, comment.UserID, -KarmaCommentUpvoted, ActionUpvoteRemoved); err != nil {
			return err
		}
		_, err := ledger.Apply(ctx, comment.UserID, KarmaCommentDownvoted, ActionCommentDownvoted)
		return err
	}
	if _, err := ledger.Apply(ctx, comment.UserID, -KarmaCommentDownvoted, ActionDownvoteRemoved); err != nil {
		return err
	}
	_, err := ledger.Apply(ctx, comment.UserID, KarmaCommentUpvoted, ActionCommentUpvoted)
	return err
}

// bumpScore shifts the comment's score by delta and refreshes the
// in-memory copy with the stored value.
func (s *VoteService) bumpScore(tx *gorm.DB, comment *models.Comment, delta int) error {
	if err := tx.Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&models.Comment{}).
		Select("score").
		Where("id = ?", comment.ID).
		Scan(&comment.Score).Error
}
