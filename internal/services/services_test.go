package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stackit/internal/db"
	"stackit/internal/models"
	"stackit/internal/ws"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// A pooled :memory: database is one database per connection; pin
	// the pool to a single connection so every session sees the same
	// schema and data.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Name:     username,
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "x",
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

func createAdmin(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := createUser(t, conn, username)
	require.NoError(t, conn.Model(user).Update("role", "admin").Error)
	user.Role = "admin"
	return user
}

func createPost(t *testing.T, conn *gorm.DB, author *models.User, title string) *models.Post {
	t.Helper()
	post := models.Post{UserID: author.ID, Title: title, Body: title + " body"}
	require.NoError(t, conn.Create(&post).Error)
	return &post
}

func createComment(t *testing.T, conn *gorm.DB, author *models.User, post *models.Post, body string) *models.Comment {
	t.Helper()
	comment := models.Comment{PostID: post.ID, UserID: author.ID, Body: body}
	require.NoError(t, conn.Create(&comment).Error)
	return &comment
}

func createTag(t *testing.T, conn *gorm.DB, name string) *models.Tag {
	t.Helper()
	tag := models.Tag{Name: name}
	require.NoError(t, conn.Create(&tag).Error)
	return &tag
}

func userKarma(t *testing.T, conn *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	require.NoError(t, conn.First(&user, userID).Error)
	return user.Karma
}

func commentState(t *testing.T, conn *gorm.DB, commentID uint) *models.Comment {
	t.Helper()
	var comment models.Comment
	require.NoError(t, conn.First(&comment, commentID).Error)
	return &comment
}

func newTestNotifier(t *testing.T, conn *gorm.DB) (*NotificationService, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub(zap.NewNop())
	t.Cleanup(hub.Close)
	return NewNotificationService(conn, hub, zap.NewNop()), hub
}

func newTestEvents(t *testing.T, conn *gorm.DB) (*EventService, *ws.Hub) {
	t.Helper()
	karma := NewKarmaService(conn)
	notifier, hub := newTestNotifier(t, conn)
	events := NewEventService(
		conn,
		karma,
		NewVoteService(conn, karma),
		NewAcceptService(conn, karma),
		NewMentionService(conn),
		notifier,
		zap.NewNop(),
	)
	return events, hub
}
