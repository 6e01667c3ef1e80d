package models

import "time"

// Indexing is one metadata entry for a document of a folder. A folder can have many.
type Indexing struct {
	ID       string `gorm:"column:indexing_id;primaryKey;type:varchar(50)" json:"id"`
	FolderID string `gorm:"column:folder_id;type:varchar(50);index;not null" json:"folder_id"`
	AgentID  string `gorm:"column:agent_id;type:varchar(50);index" json:"agent_id,omitempty"`
	Timer

	DocumentType    DocumentType    `gorm:"column:document_type;type:varchar(30)" json:"document_type,omitempty"`
	Title           string          `gorm:"column:title;type:varchar(255)" json:"title,omitempty"`
	ContractNumber  string          `gorm:"column:contract_number;type:varchar(50);index" json:"contract_number,omitempty"`
	AccountNumber   string          `gorm:"column:account_number;type:varchar(50);index" json:"account_number,omitempty"`
	DocumentDate    *time.Time      `gorm:"column:document_date" json:"document_date,omitempty"`
	Author          string          `gorm:"column:author;type:varchar(100)" json:"author,omitempty"`
	InternalRef     string          `gorm:"column:internal_ref;type:varchar(100)" json:"internal_ref,omitempty"`
	Category        Category        `gorm:"column:category;type:varchar(20)" json:"category,omitempty"`
	Confidentiality Confidentiality `gorm:"column:confidentiality;type:varchar(20);not null" json:"confidentiality"`
	PiecesIndexed   int             `gorm:"column:pieces_indexed;not null" json:"pieces_indexed"`
	Pages           int             `gorm:"column:pages;not null" json:"pages"`
	Keywords        string          `gorm:"column:keywords;type:text" json:"keywords,omitempty"`
	Description     string          `gorm:"column:description;type:text" json:"description,omitempty"`
	FilePath        string          `gorm:"column:file_path;type:varchar(255)" json:"file_path,omitempty"`
	FileSizeMB      float64         `gorm:"column:file_size_mb;not null" json:"file_size_mb"`
	FileFormat      string          `gorm:"column:file_format;type:varchar(20)" json:"file_format,omitempty"`
	Observations    string          `gorm:"column:observations;type:text" json:"observations,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *Indexing) StageTimer() *Timer    { return &i.Timer }
func (i *Indexing) Units() int            { return i.PiecesIndexed }
func (i *Indexing) OwnerFolderID() string { return i.FolderID }

func (i *Indexing) MissingFields() []string {
	var missing []string
	if i.Title == "" {
		missing = append(missing, "title")
	}
	if i.DocumentType == "" {
		missing = append(missing, "document_type")
	}
	return missing
}

// DocumentsPerHour is indexing throughput scaled to an hour
func (i *Indexing) DocumentsPerHour() float64 { return i.Throughput(i.PiecesIndexed) * 60 }
