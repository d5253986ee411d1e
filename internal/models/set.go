package models

import (
	"time"
)

type Language struct {
	ID   uint   `json:"language_id" gorm:"primaryKey;autoIncrement"`
	Code string `json:"code" gorm:"not null;uniqueIndex"`
	Name string `json:"name" gorm:"not null"`
}

// Set is one expansion. TotalCards is the official (printed) count and
// TotalWithSR includes secret rares beyond it.
type Set struct {
	ID             uint       `json:"set_id" gorm:"primaryKey;autoIncrement"`
	SetCode        string     `json:"set_code" gorm:"not null;index"`
	Name           string     `json:"name" gorm:"not null"`
	Series         *string    `json:"series"`
	LanguageID     uint       `json:"-" gorm:"not null"`
	Language       Language   `json:"-" gorm:"foreignKey:LanguageID"`
	ReleaseDate    *time.Time `json:"release_date"`
	TotalCards     int        `json:"total_cards"`
	TotalWithSR    int        `json:"total_with_sr" gorm:"column:total_with_sr"`
	APIID          *string    `json:"api_id" gorm:"column:api_id;uniqueIndex"`
	ImageSymbolURL *string    `json:"image_symbol_url" gorm:"column:image_symbol_url"`
	ImageLogoURL   *string    `json:"image_logo_url" gorm:"column:image_logo_url"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SetView is a set joined with its language code
type SetView struct {
	SetID       uint       `json:"set_id"`
	SetCode     string     `json:"set_code"`
	Name        string     `json:"name"`
	Series      *string    `json:"series"`
	Language    string     `json:"language"`
	ReleaseDate *time.Time `json:"release_date"`
	TotalCards  int        `json:"total_cards"`
	TotalWithSR int        `json:"total_with_sr"`
}
