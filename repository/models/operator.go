package models

import "time"

// Operator represents users who perform actions in the system
type Operator struct {
	ID                   string    `gorm:"column:operator_id;primaryKey;type:varchar(50)" json:"id"`
	Name                 string    `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Group                Group     `gorm:"column:role_group;type:varchar(30);index;not null" json:"group"`
	Email                string    `gorm:"column:email;type:varchar(150)" json:"email,omitempty"`
	Active               bool      `gorm:"column:active;not null" json:"active"`
	ReceiveNotifications bool      `gorm:"column:receive_notifications;not null" json:"receive_notifications"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
