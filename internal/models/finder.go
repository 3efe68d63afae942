package models

import "time"

// FinderLevel is a scene for the character-finder game.
type FinderLevel struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Slug       string            `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Name       string            `gorm:"size:120;not null" json:"name"`
	ImageURL   string            `gorm:"size:512;not null" json:"image_url"`
	Width      int               `gorm:"not null" json:"width"`
	Height     int               `gorm:"not null" json:"height"`
	Characters []FinderCharacter `gorm:"foreignKey:LevelID;constraint:OnDelete:CASCADE" json:"characters,omitempty"`
}

// FinderCharacter is hidden at (X, Y) in level pixel space; a guess within Radius hits.
// Coordinates are never serialized.
type FinderCharacter struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	LevelID uint   `gorm:"not null;uniqueIndex:idx_finder_level_character" json:"level_id"`
	Name    string `gorm:"size:64;not null;uniqueIndex:idx_finder_level_character" json:"name"`
	X       int    `gorm:"not null" json:"-"`
	Y       int    `gorm:"not null" json:"-"`
	Radius  int    `gorm:"not null" json:"-"`
}

// FinderRound is one timed attempt at a level.
type FinderRound struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	LevelID    uint         `gorm:"not null;index" json:"level_id"`
	Level      *FinderLevel `gorm:"foreignKey:LevelID;constraint:OnDelete:CASCADE" json:"-"`
	UserID     *uint        `gorm:"index" json:"user_id,omitempty"`
	User       *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PlayerName string       `gorm:"size:64;not null" json:"player_name"`
	StartedAt  time.Time    `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	DurationMs *int64       `gorm:"index" json:"duration_ms,omitempty"`
	Finds      []FinderFind `gorm:"foreignKey:RoundID;constraint:OnDelete:CASCADE" json:"finds,omitempty"`
}

// Finished reports whether every character has been found.
func (r *FinderRound) Finished() bool {
	return r.FinishedAt != nil
}

// FinderFind records that a character was found during a round.
type FinderFind struct {
	RoundID     string           `gorm:"primaryKey;size:36" json:"round_id"`
	CharacterID uint             `gorm:"primaryKey;autoIncrement:false" json:"character_id"`
	Character   *FinderCharacter `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE" json:"-"`
	FoundAt     time.Time        `json:"found_at"`
}
