package models

import "time"

// Scan is the scanning work log of a folder
type Scan struct {
	ID         string  `gorm:"column:scan_id;primaryKey;type:varchar(50)" json:"id"`
	FolderID   string  `gorm:"column:folder_id;type:varchar(50);uniqueIndex;not null" json:"folder_id"`
	OperatorID string  `gorm:"column:operator_id;type:varchar(50);index" json:"operator_id,omitempty"`
	CartonID   *string `gorm:"column:carton_id;type:varchar(50);index" json:"carton_id,omitempty"`
	Timer

	CartonNumber  string     `gorm:"column:carton_number;type:varchar(50)" json:"carton_number,omitempty"`
	Kind          FolderKind `gorm:"column:kind;type:varchar(20)" json:"kind,omitempty"`
	Pieces        int        `gorm:"column:pieces;not null" json:"pieces"`
	Pages         int        `gorm:"column:pages;not null" json:"pages"`
	Resolution    Resolution `gorm:"column:resolution;not null" json:"resolution"`
	Format        FileFormat `gorm:"column:file_format;type:varchar(10)" json:"format"`
	ColorMode     ColorMode  `gorm:"column:color_mode;type:varchar(20)" json:"color_mode"`
	Scanner       string     `gorm:"column:scanner;type:varchar(100)" json:"scanner,omitempty"`
	FileSizeMB    float64    `gorm:"column:file_size_mb;not null" json:"file_size_mb"`
	QualityIssues string     `gorm:"column:quality_issues;type:text" json:"quality_issues,omitempty"`
	Observations  string     `gorm:"column:observations;type:text" json:"observations,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Carton *Carton `gorm:"foreignKey:CartonID;constraint:OnDelete:SET NULL" json:"-"`
}

func (s *Scan) StageTimer() *Timer    { return &s.Timer }
func (s *Scan) Units() int            { return s.Pieces }
func (s *Scan) OwnerFolderID() string { return s.FolderID }

func (s *Scan) MissingFields() []string {
	var missing []string
	if s.CartonNumber == "" {
		missing = append(missing, "carton_number")
	}
	if s.Kind == "" {
		missing = append(missing, "kind")
	}
	return missing
}

// PiecesPerMinute is pieces per effective minute
func (s *Scan) PiecesPerMinute() float64 { return s.Throughput(s.Pieces) }
