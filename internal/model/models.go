package model

// AllModels lists every table managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Lecture{},
		&Task{},
		&Puzzle{},
		&Question{},
		&Survey{},
		&SurveyResponse{},
		&Track{},
		&LessonProgress{},
		&Attempt{},
		&Submission{},
		&UserAchievement{},
	}
}
