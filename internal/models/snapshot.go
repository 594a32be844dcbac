package models

import "time"

// CollectionSnapshot holds one serialized commitment collection under a storage key.
type CollectionSnapshot struct {
	Key       string `gorm:"primaryKey;size:128"`
	Payload   string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

// FeedCooldown records when a reflection item was last shown.
type FeedCooldown struct {
	Namespace string `gorm:"primaryKey;size:64"`
	DedupKey  string `gorm:"primaryKey;size:191"`
	ShownAt   time.Time
}
