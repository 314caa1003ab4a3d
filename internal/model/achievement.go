package model

import "time"

// UserAchievement is a badge grant. The unique (user, achievement) index
// keeps concurrent grants from duplicating.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string    `gorm:"size:64;not null;uniqueIndex:idx_user_achievement" json:"userId"`
	AchievementID string    `gorm:"size:64;not null;uniqueIndex:idx_user_achievement;index" json:"achievementId"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}
