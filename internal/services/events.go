package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

// EventService sequences the component calls a single user action
// produces: content write, karma, then notifications. Notification
// persistence failures are logged rather than surfaced — the content
// write stays authoritative once committed.
type EventService struct {
	db       *gorm.DB
	karma    *KarmaService
	votes    *VoteService
	accepts  *AcceptService
	mentions *MentionService
	notifier *NotificationService
	log      *zap.Logger
}

func NewEventService(db *gorm.DB, karma *KarmaService, votes *VoteService, accepts *AcceptService, mentions *MentionService, notifier *NotificationService, log *zap.Logger) *EventService {
	return &EventService{
		db:       db,
		karma:    karma,
		votes:    votes,
		accepts:  accepts,
		mentions: mentions,
		notifier: notifier,
		log:      log,
	}
}

// CreatePost persists the post with its tags, awards creation karma,
// and fans out mention notifications from the body.
func (s *EventService) CreatePost(ctx context.Context, actor *models.User, title, body string, tagIDs []uint) (*models.Post, error) {
	if len(tagIDs) == 0 {
		return nil, apperr.PreconditionFailed("at least one tag is required")
	}

	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, apperr.PreconditionFailed("one or more tag ids are invalid")
	}

	post := models.Post{
		UserID: actor.ID,
		Title:  title,
		Body:   body,
		Tags:   tags,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		_, err := s.karma.WithTx(tx).Apply(ctx, actor.ID, KarmaPostCreated, ActionPostCreated)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fanOutMentions(actor, body,
		fmt.Sprintf("@%s mentioned you in a post", actor.Username),
		post.ID, nil)
	return &post, nil
}

// UpdatePost rewrites title, body and tags. Only users mentioned in
// the new body but not the old one are notified.
func (s *EventService) UpdatePost(ctx context.Context, actor *models.User, postID uint, title, body string, tagIDs []uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("post %d not found", postID)
		}
		return nil, err
	}
	if post.UserID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("not authorized to update this post")
	}

	if len(tagIDs) == 0 {
		return nil, apperr.PreconditionFailed("at least one tag is required")
	}
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, apperr.PreconditionFailed("one or more tag ids are invalid")
	}

	oldMentioned, err := s.mentions.Resolve(ctx, post.Body)
	if err != nil {
		return nil, err
	}
	already := make(map[uint]bool, len(oldMentioned))
	for _, u := range oldMentioned {
		already[u.ID] = true
	}

	post.Title = title
	post.Body = body
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&post).Updates(map[string]interface{}{
			"title": title,
			"body":  body,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&post).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}
	post.Tags = tags

	s.fanOutMentions(actor, body,
		fmt.Sprintf("@%s mentioned you in an updated post: %s", actor.Username, title),
		post.ID, already)
	return &post, nil
}

// CreateComment persists the comment, awards creation karma, notifies
// the post author (unless they are the commenter) and fans out mention
// notifications to everyone else named in the body.
func (s *EventService) CreateComment(ctx context.Context, actor *models.User, postID uint, body string) (*models.Comment, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("post %d not found", postID)
		}
		return nil, err
	}

	comment := models.Comment{
		PostID: post.ID,
		UserID: actor.ID,
		Body:   body,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		_, err := s.karma.WithTx(tx).Apply(ctx, actor.ID, KarmaCommentCreated, ActionCommentCreated)
		return err
	})
	if err != nil {
		return nil, err
	}

	if post.UserID != actor.ID {
		msg := fmt.Sprintf("@%s commented on your post: %s", actor.Username, post.Title)
		if _, err := s.notifier.Notify(ctx, post.UserID, msg, models.NotificationTypeComment, comment.ID); err != nil {
			s.log.Warn("comment notification failed",
				zap.Uint("recipient", post.UserID), zap.Error(err))
		}
	}

	s.fanOutMentions(actor, body,
		fmt.Sprintf("@%s mentioned you in a comment", actor.Username),
		comment.ID, nil)
	return &comment, nil
}

// ToggleAccept runs the accept state transition and, when a comment
// was newly accepted, emits the ANSWER notification after the karma
// award has been committed.
func (s *EventService) ToggleAccept(ctx context.Context, actor *models.User, commentID uint) (*models.Comment, error) {
	comment, newlyAccepted, err := s.accepts.Toggle(ctx, actor, commentID)
	if err != nil {
		return nil, err
	}

	if newlyAccepted && comment.UserID != actor.ID {
		msg := fmt.Sprintf("@%s accepted your comment as the answer", actor.Username)
		if _, err := s.notifier.Notify(ctx, comment.UserID, msg, models.NotificationTypeAnswer, comment.ID); err != nil {
			s.log.Warn("answer notification failed",
				zap.Uint("recipient", comment.UserID), zap.Error(err))
		}
	}
	return comment, nil
}

// CastVote runs the vote state transition. Votes emit no notifications.
func (s *EventService) CastVote(ctx context.Context, actor *models.User, commentID uint, requested models.VoteType) (*models.Comment, error) {
	return s.votes.Cast(ctx, actor.ID, commentID, requested)
}

// fanOutMentions resolves @mentions in text and notifies each
// mentioned user except the actor and anyone in exclude. Mention
// recipients are disjoint from the content-owner notification, so the
// fan-out runs in its own goroutine off the request path.
func (s *EventService) fanOutMentions(actor *models.User, text, message string, referenceID uint, exclude map[uint]bool) {
	go func() {
		ctx := context.Background()
		users, err := s.mentions.Resolve(ctx, text)
		if err != nil {
			s.log.Warn("mention resolution failed", zap.Error(err))
			return
		}
		for _, u := range users {
			if u.ID == actor.ID || exclude[u.ID] {
				continue
			}
			if _, err := s.notifier.Notify(ctx, u.ID, message, models.NotificationTypeMention, referenceID); err != nil {
				s.log.Warn("mention notification failed",
					zap.Uint("recipient", u.ID), zap.Error(err))
			}
		}
	}()
}
