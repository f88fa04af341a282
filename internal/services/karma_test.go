package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackit/internal/apperr"
	"stackit/internal/models"
)

func TestKarmaApply(t *testing.T) {
	conn := setupTestDB(t)
	karma := NewKarmaService(conn)
	user := createUser(t, conn, "alice")
	ctx := context.Background()

	total, err := karma.Apply(ctx, user.ID, KarmaPostCreated, ActionPostCreated)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	total, err = karma.Apply(ctx, user.ID, KarmaCommentDownvoted, ActionCommentDownvoted)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	assert.Equal(t, 3, userKarma(t, conn, user.ID))
}

func TestKarmaMayGoNegative(t *testing.T) {
	conn := setupTestDB(t)
	karma := NewKarmaService(conn)
	user := createUser(t, conn, "bob")

	total, err := karma.Apply(context.Background(), user.ID, -7, ActionCommentDownvoted)
	require.NoError(t, err)
	assert.Equal(t, -7, total)
}

func TestKarmaUserNotFound(t *testing.T) {
	conn := setupTestDB(t)
	karma := NewKarmaService(conn)

	_, err := karma.Apply(context.Background(), 9999, 5, ActionPostCreated)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// The failed transaction must not leave a ledger entry behind.
	var logs int64
	conn.Model(&models.KarmaLog{}).Count(&logs)
	assert.Zero(t, logs)
}

// Replays a scripted sequence and checks that the audit trail and the
// balance agree: no delta lost, none applied twice.
func TestKarmaConservation(t *testing.T) {
	conn := setupTestDB(t)
	karma := NewKarmaService(conn)
	user := createUser(t, conn, "carol")
	ctx := context.Background()

	script := []struct {
		amount int
		action string
	}{
		{KarmaPostCreated, ActionPostCreated},
		{KarmaCommentCreated, ActionCommentCreated},
		{KarmaCommentUpvoted, ActionCommentUpvoted},
		{-KarmaCommentUpvoted, ActionUpvoteRemoved},
		{KarmaCommentDownvoted, ActionCommentDownvoted},
		{KarmaCommentAccepted, ActionCommentAccepted},
	}
	want := 0
	for _, step := range script {
		_, err := karma.Apply(ctx, user.ID, step.amount, step.action)
		require.NoError(t, err)
		want += step.amount
	}

	var logged int
	require.NoError(t, conn.Model(&models.KarmaLog{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", user.ID).
		Scan(&logged).Error)

	assert.Equal(t, want, logged)
	assert.Equal(t, want, userKarma(t, conn, user.ID))
}

func TestKarmaConcurrentApplies(t *testing.T) {
	conn := setupTestDB(t)
	karma := NewKarmaService(conn)
	user := createUser(t, conn, "dave")

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := karma.Apply(context.Background(), user.ID, KarmaCommentCreated, ActionCommentCreated)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*KarmaCommentCreated, userKarma(t, conn, user.ID))
}
