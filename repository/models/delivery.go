package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MegabytesPerPiece is the size estimate used for delivery packages
const MegabytesPerPiece = 0.5

// Delivery is a batch handoff of completed folders to the recipient
type Delivery struct {
	ID             string         `gorm:"column:delivery_id;primaryKey;type:varchar(50)" json:"id"`
	Number         string         `gorm:"column:number;type:varchar(50);uniqueIndex;not null" json:"number"`
	Date           time.Time      `gorm:"column:delivery_date;not null;index" json:"date"`
	ArchivistID    *string        `gorm:"column:archivist_id;type:varchar(50)" json:"archivist_id,omitempty"`
	Method         DeliveryMethod `gorm:"column:method;type:varchar(20);not null;index" json:"method"`
	Recipient      string         `gorm:"column:recipient;type:varchar(100);not null" json:"recipient"`
	RecipientEmail string         `gorm:"column:recipient_email;type:varchar(150)" json:"recipient_email,omitempty"`
	State          DeliveryState  `gorm:"column:state;type:varchar(20);index;not null" json:"state"`

	CompletenessVerified bool `gorm:"column:completeness_verified;not null" json:"completeness_verified"`
	QualityVerified      bool `gorm:"column:quality_verified;not null" json:"quality_verified"`
	NamingVerified       bool `gorm:"column:naming_verified;not null" json:"naming_verified"`

	SharePath     string     `gorm:"column:share_path;type:varchar(255)" json:"share_path,omitempty"`
	ShareURL      string     `gorm:"column:share_url;type:varchar(255)" json:"share_url,omitempty"`
	SharePassword string     `gorm:"column:share_password;type:varchar(50)" json:"share_password,omitempty"`
	ShareExpires  *time.Time `gorm:"column:share_expires" json:"share_expires,omitempty"`

	PreparedAt  *time.Time     `gorm:"column:prepared_at" json:"prepared_at,omitempty"`
	VerifiedAt  *time.Time     `gorm:"column:verified_at" json:"verified_at,omitempty"`
	SentAt      *time.Time     `gorm:"column:sent_at;index" json:"sent_at,omitempty"`
	ConfirmedAt *time.Time     `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	Problems    string         `gorm:"column:problems;type:text" json:"problems,omitempty"`
	Notes       string         `gorm:"column:notes;type:text" json:"notes,omitempty"`
	NotifiedAt  *time.Time     `gorm:"column:notified_at" json:"notified_at,omitempty"`
	History     datatypes.JSON `gorm:"column:history" json:"history"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Folders []Folder `gorm:"many2many:delivery_folders;joinForeignKey:DeliveryID;joinReferences:FolderID" json:"folders,omitempty"`
}

// StateChange is one entry of the delivery history
type StateChange struct {
	At   time.Time     `json:"at"`
	From DeliveryState `json:"from"`
	To   DeliveryState `json:"to"`
}

// Transitions decodes the recorded history. A malformed history reads as empty.
func (d *Delivery) Transitions() []StateChange {
	var changes []StateChange
	if len(d.History) == 0 {
		return changes
	}
	if err := json.Unmarshal(d.History, &changes); err != nil {
		return nil
	}
	return changes
}

// RecordTransition appends a history entry
func (d *Delivery) RecordTransition(from, to DeliveryState, at time.Time) {
	changes := append(d.Transitions(), StateChange{At: at, From: from, To: to})
	raw, err := json.Marshal(changes)
	if err != nil {
		return
	}
	d.History = datatypes.JSON(raw)
}

func (d *Delivery) FolderCount() int { return len(d.Folders) }

func (d *Delivery) TotalPieces() int {
	total := 0
	for _, f := range d.Folders {
		total += f.PieceCount
	}
	return total
}

// EstimatedSizeMB assumes MegabytesPerPiece for every piece
func (d *Delivery) EstimatedSizeMB() float64 {
	return float64(d.TotalPieces()) * MegabytesPerPiece
}

// MissingVerifications names the verification flags that are still unset
func (d *Delivery) MissingVerifications() []string {
	var missing []string
	if !d.CompletenessVerified {
		missing = append(missing, "completeness")
	}
	if !d.QualityVerified {
		missing = append(missing, "quality")
	}
	if !d.NamingVerified {
		missing = append(missing, "naming")
	}
	return missing
}
