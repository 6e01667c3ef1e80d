package models

import "time"

// Carton is a physical container grouping folders queued for scanning
type Carton struct {
	ID          string      `gorm:"column:carton_id;primaryKey;type:varchar(50)" json:"id"`
	Number      string      `gorm:"column:number;type:varchar(50);uniqueIndex;not null" json:"number"`
	Kind        FolderKind  `gorm:"column:kind;type:varchar(20)" json:"kind,omitempty"`
	Capacity    int         `gorm:"column:capacity;not null" json:"capacity"`
	FolderCount int         `gorm:"column:folder_count;not null" json:"folder_count"`
	State       CartonState `gorm:"column:state;type:varchar(20);index;not null" json:"state"`
	Priority    Priority    `gorm:"column:priority;type:varchar(10);not null" json:"priority"`
	OperatorID  *string     `gorm:"column:operator_id;type:varchar(50)" json:"operator_id,omitempty"`
	Location    string      `gorm:"column:location;type:varchar(100)" json:"location,omitempty"`

	ScanStartedAt *time.Time `gorm:"column:scan_started_at" json:"scan_started_at,omitempty"`
	ScanEndedAt   *time.Time `gorm:"column:scan_ended_at" json:"scan_ended_at,omitempty"`
	Notes         string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Folders []Folder `gorm:"foreignKey:CartonID;constraint:OnDelete:SET NULL" json:"folders,omitempty"`
}

// Available is the number of free slots, never negative
func (c *Carton) Available() int {
	if c.FolderCount >= c.Capacity {
		return 0
	}
	return c.Capacity - c.FolderCount
}

// FillRatio is members over capacity, in percent
func (c *Carton) FillRatio() float64 {
	if c.Capacity <= 0 {
		return 0
	}
	return float64(c.FolderCount) / float64(c.Capacity) * 100
}

func (c *Carton) ScanMinutes() float64 {
	if c.ScanStartedAt == nil || c.ScanEndedAt == nil {
		return 0
	}
	return c.ScanEndedAt.Sub(*c.ScanStartedAt).Minutes()
}

// TotalPieces sums the cached piece count of the loaded folders
func (c *Carton) TotalPieces() int {
	total := 0
	for _, f := range c.Folders {
		total += f.PieceCount
	}
	return total
}
