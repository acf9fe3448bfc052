package database

import "sidequest/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Join tables (job_posters, chat_members, ...) are derived from the many2many
// tags on these structs.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Job{},
		&models.Rating{},
		&models.Asset{},
		&models.Chat{},
		&models.Message{},
	}
}
