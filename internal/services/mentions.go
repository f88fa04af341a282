package services

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"stackit/internal/models"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the distinct usernames referenced as @name
// tokens in text, in order of first appearance.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// MentionService resolves @username tokens to known users. Usernames
// with no matching user are silently dropped.
type MentionService struct {
	db *gorm.DB
}

func NewMentionService(db *gorm.DB) *MentionService {
	return &MentionService{db: db}
}

func (s *MentionService) Resolve(ctx context.Context, text string) ([]models.User, error) {
	usernames := ExtractMentions(text)
	if len(usernames) == 0 {
		return nil, nil
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Where("username IN ?", usernames).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
