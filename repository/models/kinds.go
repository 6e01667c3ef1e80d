package models

// FolderKind classifies the business content of a folder
type FolderKind string

const (
	KindLoan      FolderKind = "loan"
	KindEquipment FolderKind = "equipment"
	KindAccount   FolderKind = "account"
	KindEvent     FolderKind = "event"
)

var folderKindLabels = map[FolderKind]string{
	KindLoan:      "Consumer loan",
	KindEquipment: "Equipment loan",
	KindAccount:   "Account opening",
	KindEvent:     "Event file",
}

func (k FolderKind) Label() string { return label(folderKindLabels, k) }

func (k FolderKind) Valid() bool {
	_, ok := folderKindLabels[k]
	return ok
}

type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent || p == PriorityCritical
}

// DeliveryMethod selects the transport used to hand a batch over
type DeliveryMethod string

const (
	MethodSecureShare   DeliveryMethod = "secure_share"
	MethodFTP           DeliveryMethod = "ftp"
	MethodEmail         DeliveryMethod = "email"
	MethodPhysicalMedia DeliveryMethod = "physical_media"
	MethodCloudStorage  DeliveryMethod = "cloud_storage"
)

var deliveryMethodLabels = map[DeliveryMethod]string{
	MethodSecureShare:   "Secure share",
	MethodFTP:           "FTP",
	MethodEmail:         "Email",
	MethodPhysicalMedia: "Physical media",
	MethodCloudStorage:  "Cloud storage",
}

func (m DeliveryMethod) Label() string { return label(deliveryMethodLabels, m) }

func (m DeliveryMethod) Valid() bool {
	_, ok := deliveryMethodLabels[m]
	return ok
}

// Group is the role group an operator belongs to
type Group string

const (
	GroupArchivist       Group = "archivist"
	GroupProcessingAgent Group = "processing_agent"
	GroupStockManager    Group = "stock_manager"
	GroupScanOperator    Group = "scan_operator"
	GroupIndexingAgent   Group = "indexing_agent"
)

func (g Group) Valid() bool {
	switch g {
	case GroupArchivist, GroupProcessingAgent, GroupStockManager, GroupScanOperator, GroupIndexingAgent:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very_hard"
)

// Condition is the physical state of a folder observed during processing
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionDamaged   Condition = "damaged"
)

// Resolution in dots per inch
type Resolution int

const (
	Resolution300  Resolution = 300
	Resolution600  Resolution = 600
	Resolution1200 Resolution = 1200
)

func (r Resolution) Valid() bool {
	return r == Resolution300 || r == Resolution600 || r == Resolution1200
}

type FileFormat string

const (
	FormatPDF  FileFormat = "pdf"
	FormatTIFF FileFormat = "tiff"
	FormatJPEG FileFormat = "jpeg"
)

func (f FileFormat) Valid() bool {
	return f == FormatPDF || f == FormatTIFF || f == FormatJPEG
}

type ColorMode string

const (
	ColorMono      ColorMode = "monochrome"
	ColorGrayscale ColorMode = "grayscale"
	ColorFull      ColorMode = "color"
)

type DocumentType string

const (
	DocContract       DocumentType = "contract"
	DocIdentity       DocumentType = "identity"
	DocIncomeProof    DocumentType = "income_proof"
	DocCertificate    DocumentType = "certificate"
	DocInvoice        DocumentType = "invoice"
	DocStatement      DocumentType = "statement"
	DocCorrespondence DocumentType = "correspondence"
	DocForm           DocumentType = "form"
	DocOther          DocumentType = "other"
)

var documentTypeLabels = map[DocumentType]string{
	DocContract:       "Contract",
	DocIdentity:       "Identity document",
	DocIncomeProof:    "Proof of income",
	DocCertificate:    "Certificate",
	DocInvoice:        "Invoice",
	DocStatement:      "Statement",
	DocCorrespondence: "Correspondence",
	DocForm:           "Form",
	DocOther:          "Other",
}

func (d DocumentType) Label() string { return label(documentTypeLabels, d) }

func (d DocumentType) Valid() bool {
	_, ok := documentTypeLabels[d]
	return ok
}

type Category string

const (
	CategoryAdministrative Category = "administrative"
	CategoryFinancial      Category = "financial"
	CategoryLegal          Category = "legal"
	CategoryTechnical      Category = "technical"
	CategoryCommercial     Category = "commercial"
)

type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "public"
	ConfidentialityInternal     Confidentiality = "internal"
	ConfidentialityConfidential Confidentiality = "confidential"
	ConfidentialitySecret       Confidentiality = "secret"
)

func (c Confidentiality) Valid() bool {
	switch c {
	case ConfidentialityPublic, ConfidentialityInternal, ConfidentialityConfidential, ConfidentialitySecret:
		return true
	}
	return false
}
