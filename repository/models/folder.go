package models

import (
	"fmt"
	"time"
)

// Folder is a physical case dossier moving through the pipeline
type Folder struct {
	ID         string      `gorm:"column:folder_id;primaryKey;type:varchar(50)" json:"id"`
	Number     string      `gorm:"column:number;type:varchar(50);uniqueIndex;not null" json:"number"`
	IntakeID   string      `gorm:"column:intake_id;type:varchar(50);index;not null" json:"intake_id"`
	State      FolderState `gorm:"column:state;type:varchar(20);index;not null" json:"state"`
	Kind       FolderKind  `gorm:"column:kind;type:varchar(20)" json:"kind,omitempty"`
	FolderType string      `gorm:"column:folder_type;type:varchar(30)" json:"folder_type"`
	Priority   Priority    `gorm:"column:priority;type:varchar(10);not null" json:"priority"`
	ReceivedAt time.Time   `gorm:"column:received_at;not null" json:"received_at"`

	Radical      string  `gorm:"column:radical;type:varchar(50);index" json:"radical,omitempty"`
	AgencyCode   string  `gorm:"column:agency_code;type:varchar(20);index" json:"agency_code,omitempty"`
	CartonID     *string `gorm:"column:carton_id;type:varchar(50);index" json:"carton_id,omitempty"`
	CartonNumber string  `gorm:"column:carton_number;type:varchar(50)" json:"carton_number,omitempty"`
	DeliveryID   *string `gorm:"column:delivery_id;type:varchar(50);index" json:"delivery_id,omitempty"`

	ProcessingAgentID *string `gorm:"column:processing_agent_id;type:varchar(50)" json:"processing_agent_id,omitempty"`
	StockManagerID    *string `gorm:"column:stock_manager_id;type:varchar(50)" json:"stock_manager_id,omitempty"`
	ScanOperatorID    *string `gorm:"column:scan_operator_id;type:varchar(50)" json:"scan_operator_id,omitempty"`
	IndexingAgentID   *string `gorm:"column:indexing_agent_id;type:varchar(50)" json:"indexing_agent_id,omitempty"`

	ProcessingStartedAt *time.Time `gorm:"column:processing_started_at" json:"processing_started_at,omitempty"`
	ProcessingEndedAt   *time.Time `gorm:"column:processing_ended_at" json:"processing_ended_at,omitempty"`
	TransferredAt       *time.Time `gorm:"column:transferred_at" json:"transferred_at,omitempty"`
	ScanStartedAt       *time.Time `gorm:"column:scan_started_at" json:"scan_started_at,omitempty"`
	ScanEndedAt         *time.Time `gorm:"column:scan_ended_at" json:"scan_ended_at,omitempty"`
	IndexingStartedAt   *time.Time `gorm:"column:indexing_started_at" json:"indexing_started_at,omitempty"`
	IndexingEndedAt     *time.Time `gorm:"column:indexing_ended_at" json:"indexing_ended_at,omitempty"`
	DeliveredAt         *time.Time `gorm:"column:delivered_at;index" json:"delivered_at,omitempty"`

	// Cached metrics, refreshed whenever a stage record of the folder changes
	ProcessingMinutes float64 `gorm:"column:processing_minutes;not null" json:"processing_minutes"`
	ScanMinutes       float64 `gorm:"column:scan_minutes;not null" json:"scan_minutes"`
	IndexingMinutes   float64 `gorm:"column:indexing_minutes;not null" json:"indexing_minutes"`
	PieceCount        int     `gorm:"column:piece_count;not null" json:"piece_count"`
	IndexedDocuments  int     `gorm:"column:indexed_documents;not null" json:"indexed_documents"`

	Notes     string    `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Processing *Processing `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"processing,omitempty"`
	Scan       *Scan       `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"scan,omitempty"`
	Indexings  []Indexing  `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"indexings,omitempty"`
}

// DisplayName combines the folder number with its radical and agency when known
func (f *Folder) DisplayName() string {
	switch {
	case f.Radical != "" && f.AgencyCode != "":
		return fmt.Sprintf("%s - %s (%s)", f.Number, f.Radical, f.AgencyCode)
	case f.Radical != "":
		return fmt.Sprintf("%s - %s", f.Number, f.Radical)
	}
	return f.Number
}

func (f *Folder) Progress() float64 { return f.State.Progress() }

func (f *Folder) TotalHours() float64 {
	return (f.ProcessingMinutes + f.ScanMinutes + f.IndexingMinutes) / 60
}
