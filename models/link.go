package models

import "time"

// Link is a shared URL inside a category. The category reference is not
// enforced by a foreign key constraint; links survive category deletion as
// orphans. Counters are only ever mutated by single-statement increments.
type Link struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	URL        string    `gorm:"size:2048;not null" json:"url"`
	Label      string    `gorm:"size:255" json:"label"`
	CategoryID uint      `gorm:"index;not null" json:"category"`
	Likes      int64     `gorm:"not null;default:0" json:"likes"`
	Views      int64     `gorm:"not null;default:0" json:"views"`
	Replies    int64     `gorm:"not null;default:0" json:"replies"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"categoryDetail,omitempty"`
}
