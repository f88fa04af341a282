package models

import (
	"time"
)

type VoteType string

const (
	VoteTypeUp   VoteType = "upvote"
	VoteTypeDown VoteType = "downvote"
)

// Valid reports whether t is one of the two known vote types.
func (t VoteType) Valid() bool {
	return t == VoteTypeUp || t == VoteTypeDown
}

// ScoreValue is the weight a vote of this type contributes to a
// comment's score.
func (t VoteType) ScoreValue() int {
	if t == VoteTypeUp {
		return 1
	}
	return -1
}

// CommentVote records a single user's vote on a single comment.
// The unique index guarantees at most one row per (user, comment)
// pair even under concurrent casts.
type CommentVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_comment_vote" json:"user_id"`
	CommentID uint      `gorm:"not null;index;uniqueIndex:idx_user_comment_vote" json:"comment_id"`
	VoteType  VoteType  `gorm:"size:10;not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}
