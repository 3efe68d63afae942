package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Profile{},
		&models.Follow{},
		&models.Image{},
		&models.Post{},
		&models.Tag{},
		&models.Comment{},
		&models.Vote{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.ChatManager{},
		&models.Message{},
		&models.Notification{},
		&models.FinderLevel{},
		&models.FinderCharacter{},
		&models.FinderRound{},
		&models.FinderFind{},
		&models.PurgeWatermark{},
	}
}
