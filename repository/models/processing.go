package models

import "time"

// Processing is the physical processing work log of a folder
type Processing struct {
	ID       string `gorm:"column:processing_id;primaryKey;type:varchar(50)" json:"id"`
	FolderID string `gorm:"column:folder_id;type:varchar(50);uniqueIndex;not null" json:"folder_id"`
	AgentID  string `gorm:"column:agent_id;type:varchar(50);index" json:"agent_id,omitempty"`
	Timer

	Radical         string     `gorm:"column:radical;type:varchar(50)" json:"radical,omitempty"`
	AgencyCode      string     `gorm:"column:agency_code;type:varchar(20)" json:"agency_code,omitempty"`
	PiecesProcessed int        `gorm:"column:pieces_processed;not null" json:"pieces_processed"`
	Difficulty      Difficulty `gorm:"column:difficulty;type:varchar(20)" json:"difficulty,omitempty"`
	Condition       Condition  `gorm:"column:folder_condition;type:varchar(20)" json:"condition,omitempty"`
	Observations    string     `gorm:"column:observations;type:text" json:"observations,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Processing) StageTimer() *Timer    { return &p.Timer }
func (p *Processing) Units() int            { return p.PiecesProcessed }
func (p *Processing) OwnerFolderID() string { return p.FolderID }

func (p *Processing) MissingFields() []string {
	var missing []string
	if p.Radical == "" {
		missing = append(missing, "radical")
	}
	if p.AgencyCode == "" {
		missing = append(missing, "agency_code")
	}
	return missing
}

// Speed is pieces per effective minute
func (p *Processing) Speed() float64 { return p.Throughput(p.PiecesProcessed) }
