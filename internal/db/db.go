package db

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stackit/internal/models"
)

// New opens the database and runs migrations. The returned handle is
// passed to services explicitly; there is no package-level connection.
func New(dsn string, log *zap.Logger) (*gorm.DB, error) {
	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the vote engine relies on.
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	log.Info("database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	log.Info("database migration completed")

	seedTags(conn, log)
	return conn, nil
}

// Migrate creates/updates the schema. Split out from New so tests can
// run it against their own (in-memory) databases.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.CommentVote{},
		&models.KarmaLog{},
		&models.Notification{},
	)
}

func seedTags(conn *gorm.DB, log *zap.Logger) {
	var count int64
	conn.Model(&models.Tag{}).Count(&count)
	if count > 0 {
		return
	}

	tags := []models.Tag{
		{Name: "general"},
		{Name: "help"},
		{Name: "discussion"},
		{Name: "show-and-tell"},
	}
	for _, tag := range tags {
		if err := conn.Create(&tag).Error; err != nil {
			log.Warn("failed to seed tag", zap.String("name", tag.Name), zap.Error(err))
		}
	}
	log.Info("initial tags created")
}
