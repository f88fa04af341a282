package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

func notificationsFor(t *testing.T, events *EventService, userID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, events.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error)
	return out
}

func waitForNotifications(t *testing.T, events *EventService, userID uint, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		var n int64
		events.db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&n)
		return n == int64(want)
	}, 2*time.Second, 10*time.Millisecond)
}

// A creates a comment on B's post: A earns the creation karma, B's
// karma is untouched, and B gets exactly one unread COMMENT
// notification.
func TestCreateCommentNotifiesPostAuthor(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	b := createUser(t, conn, "bea")
	a := createUser(t, conn, "adam")
	post := createPost(t, conn, b, "how do I exit vim")

	comment, err := events.CreateComment(context.Background(), a, post.ID, "press :q")
	require.NoError(t, err)

	assert.Equal(t, KarmaCommentCreated, userKarma(t, conn, a.ID))
	assert.Equal(t, 0, userKarma(t, conn, b.ID))

	got := notificationsFor(t, events, b.ID)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationTypeComment, got[0].Type)
	assert.Equal(t, comment.ID, got[0].ReferenceID)
	assert.False(t, got[0].IsRead)
	assert.Contains(t, got[0].Message, "@adam")
}

func TestCreateCommentOnOwnPostNoNotification(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")
	post := createPost(t, conn, a, "talking to myself")

	_, err := events.CreateComment(context.Background(), a, post.ID, "indeed")
	require.NoError(t, err)

	assert.Empty(t, notificationsFor(t, events, a.ID))
	assert.Equal(t, KarmaCommentCreated, userKarma(t, conn, a.ID))
}

func TestCreateCommentPostNotFound(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")

	_, err := events.CreateComment(context.Background(), a, 9999, "hello?")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateCommentMentionFanOut(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	owner := createUser(t, conn, "owner")
	a := createUser(t, conn, "adam")
	carol := createUser(t, conn, "carol")
	post := createPost(t, conn, owner, "a question")

	comment, err := events.CreateComment(context.Background(), a, post.ID, "as @carol said, also thanks @adam and @ghost")
	require.NoError(t, err)

	waitForNotifications(t, events, carol.ID, 1)
	got := notificationsFor(t, events, carol.ID)
	assert.Equal(t, models.NotificationTypeMention, got[0].Type)
	assert.Equal(t, comment.ID, got[0].ReferenceID)

	// The commenter never hears about their own mention; the unknown
	// name resolves to nobody.
	assert.Empty(t, notificationsFor(t, events, a.ID))
}

// Post owner accepts an answer, then tries to accept a second one on
// the same post.
func TestAcceptScenario(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	owner := createUser(t, conn, "owner")
	answerer := createUser(t, conn, "answerer")
	post := createPost(t, conn, owner, "a question")
	x := createComment(t, conn, answerer, post, "answer x")
	y := createComment(t, conn, answerer, post, "answer y")
	ctx := context.Background()

	accepted, err := events.ToggleAccept(ctx, owner, x.ID)
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)
	assert.Equal(t, KarmaCommentAccepted, userKarma(t, conn, answerer.ID))

	got := notificationsFor(t, events, answerer.ID)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationTypeAnswer, got[0].Type)
	assert.False(t, got[0].IsRead)

	_, err = events.ToggleAccept(ctx, owner, y.ID)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
	assert.False(t, commentState(t, conn, y.ID).IsAccepted)
	assert.Equal(t, KarmaCommentAccepted, userKarma(t, conn, answerer.ID))
	assert.Len(t, notificationsFor(t, events, answerer.ID), 1)
}

// Accepting your own comment still awards karma but produces no
// self-notification.
func TestAcceptOwnCommentNoNotification(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	owner := createUser(t, conn, "owner")
	post := createPost(t, conn, owner, "self answered")
	comment := createComment(t, conn, owner, post, "figured it out")

	accepted, err := events.ToggleAccept(context.Background(), owner, comment.ID)
	require.NoError(t, err)
	assert.True(t, accepted.IsAccepted)
	assert.Equal(t, KarmaCommentAccepted, userKarma(t, conn, owner.ID))
	assert.Empty(t, notificationsFor(t, events, owner.ID))
}

func TestUnacceptEmitsNothing(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	owner := createUser(t, conn, "owner")
	answerer := createUser(t, conn, "answerer")
	post := createPost(t, conn, owner, "a question")
	comment := createComment(t, conn, answerer, post, "the answer")
	ctx := context.Background()

	_, err := events.ToggleAccept(ctx, owner, comment.ID)
	require.NoError(t, err)
	unaccepted, err := events.ToggleAccept(ctx, owner, comment.ID)
	require.NoError(t, err)

	assert.False(t, unaccepted.IsAccepted)
	assert.Len(t, notificationsFor(t, events, answerer.ID), 1) // only the original accept
}

func TestCreatePost(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")
	carol := createUser(t, conn, "carol")
	tag := createTag(t, conn, "general")

	post, err := events.CreatePost(context.Background(), a, "hello", "welcome @carol and @adam", []uint{tag.ID})
	require.NoError(t, err)
	assert.Equal(t, KarmaPostCreated, userKarma(t, conn, a.ID))

	waitForNotifications(t, events, carol.ID, 1)
	got := notificationsFor(t, events, carol.ID)
	assert.Equal(t, models.NotificationTypeMention, got[0].Type)
	assert.Equal(t, post.ID, got[0].ReferenceID)
	assert.Empty(t, notificationsFor(t, events, a.ID))
}

func TestCreatePostRequiresValidTags(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")

	_, err := events.CreatePost(context.Background(), a, "hello", "body", nil)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	_, err = events.CreatePost(context.Background(), a, "hello", "body", []uint{9999})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	assert.Equal(t, 0, userKarma(t, conn, a.ID))
}

// Editing a post notifies only users mentioned in the new body who
// were not already mentioned in the old one.
func TestUpdatePostMentionDiff(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")
	carol := createUser(t, conn, "carol")
	dave := createUser(t, conn, "dave")
	tag := createTag(t, conn, "general")

	post, err := events.CreatePost(context.Background(), a, "hello", "hi @carol", []uint{tag.ID})
	require.NoError(t, err)
	waitForNotifications(t, events, carol.ID, 1)

	_, err = events.UpdatePost(context.Background(), a, post.ID, "hello", "hi @carol and @dave", []uint{tag.ID})
	require.NoError(t, err)

	waitForNotifications(t, events, dave.ID, 1)
	// Carol was already mentioned; no second notification.
	assert.Len(t, notificationsFor(t, events, carol.ID), 1)
}

func TestUpdatePostForbiddenForStranger(t *testing.T) {
	conn := setupTestDB(t)
	events, _ := newTestEvents(t, conn)
	a := createUser(t, conn, "adam")
	stranger := createUser(t, conn, "stranger")
	tag := createTag(t, conn, "general")

	post, err := events.CreatePost(context.Background(), a, "hello", "body", []uint{tag.ID})
	require.NoError(t, err)

	_, err = events.UpdatePost(context.Background(), stranger, post.ID, "hacked", "body", []uint{tag.ID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
