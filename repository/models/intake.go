package models

import "time"

// Intake is a reception batch. Validating it spawns one Folder per declared folder.
type Intake struct {
	ID            string      `gorm:"column:intake_id;primaryKey;type:varchar(50)" json:"id"`
	Number        string      `gorm:"column:number;type:varchar(50);uniqueIndex;not null" json:"number"`
	ReceivedAt    time.Time   `gorm:"column:received_at;not null;index" json:"received_at"`
	ArrivedAt     *time.Time  `gorm:"column:arrived_at" json:"arrived_at,omitempty"`
	Courier       string      `gorm:"column:courier;type:varchar(100)" json:"courier,omitempty"`
	DeliverySlip  string      `gorm:"column:delivery_slip;type:varchar(100);not null" json:"delivery_slip"`
	FolderType    string      `gorm:"column:folder_type;type:varchar(30);not null" json:"folder_type"`
	DeclaredCount int         `gorm:"column:declared_count;not null" json:"declared_count"`
	State         IntakeState `gorm:"column:state;type:varchar(20);index;not null" json:"state"`
	ArchivistID   *string     `gorm:"column:archivist_id;type:varchar(50);index" json:"archivist_id,omitempty"`

	// Reception checks
	CountChecked        bool `gorm:"column:count_checked;not null" json:"count_checked"`
	ConditionChecked    bool `gorm:"column:condition_checked;not null" json:"condition_checked"`
	CompletenessChecked bool `gorm:"column:completeness_checked;not null" json:"completeness_checked"`
	SlipChecked         bool `gorm:"column:slip_checked;not null" json:"slip_checked"`
	SignatureChecked    bool `gorm:"column:signature_checked;not null" json:"signature_checked"`

	CompletedAt *time.Time `gorm:"column:completed_at;index" json:"completed_at,omitempty"`

	Notes     string    `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Anomalies string    `gorm:"column:anomalies;type:text" json:"anomalies,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Folders []Folder `gorm:"foreignKey:IntakeID;constraint:OnDelete:CASCADE" json:"folders,omitempty"`
}

// FoldersCreated counts the loaded folders
func (i *Intake) FoldersCreated() int { return len(i.Folders) }

// FoldersStarted counts the folders that left reception
func (i *Intake) FoldersStarted() int {
	n := 0
	for _, f := range i.Folders {
		if f.State != FolderReceived {
			n++
		}
	}
	return n
}

// Progress is the share of delivered folders, in percent
func (i *Intake) Progress() float64 {
	if len(i.Folders) == 0 {
		return 0
	}
	delivered := 0
	for _, f := range i.Folders {
		if f.State == FolderDelivered {
			delivered++
		}
	}
	return float64(delivered) / float64(len(i.Folders)) * 100
}

func (i *Intake) TotalHours() float64 {
	total := 0.0
	for _, f := range i.Folders {
		total += f.TotalHours()
	}
	return total
}

// AverageHoursPerFolder averages over started folders only
func (i *Intake) AverageHoursPerFolder() float64 {
	started := i.FoldersStarted()
	if started == 0 {
		return 0
	}
	return i.TotalHours() / float64(started)
}
