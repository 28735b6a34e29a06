package infrastructure

import "time"

// NotificationModel 对应 notifications 表。
type NotificationModel struct {
	ID            string    `gorm:"primaryKey;size:36"`
	UserID        string    `gorm:"size:36;index:idx_notifications_inbox,priority:1"`
	Role          string    `gorm:"size:32;index:idx_notifications_inbox,priority:2"`
	Module        string    `gorm:"size:32"`
	Type          string    `gorm:"size:48"`
	Title         string    `gorm:"size:255"`
	Message       string    `gorm:"type:text"`
	Status        string    `gorm:"size:16;index:idx_notifications_inbox,priority:3"`
	Priority      string    `gorm:"size:16"`
	ReferenceID   string    `gorm:"size:36"`
	ReferenceType string    `gorm:"size:32"`
	ActionURL     string    `gorm:"size:512"`
	ActionLabel   string    `gorm:"size:64"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false;index"`
	ReadAt        *time.Time
}

func (NotificationModel) TableName() string { return "notifications" }

// ProfileModel 属于身份系统，这里只读。
type ProfileModel struct {
	ID       string `gorm:"primaryKey;size:36"`
	Role     string `gorm:"size:32;index"`
	IsActive bool   `gorm:"index"`
}

func (ProfileModel) TableName() string { return "profiles" }
