package models

// FolderState is the pipeline stage a folder currently sits in
type FolderState string

const (
	FolderReceived   FolderState = "received"
	FolderProcessing FolderState = "processing"
	FolderTransfer   FolderState = "transfer"
	FolderScanning   FolderState = "scanning"
	FolderIndexing   FolderState = "indexing"
	FolderDelivery   FolderState = "delivery"
	FolderDelivered  FolderState = "delivered"
)

// FolderPipeline lists the folder states in pipeline order
var FolderPipeline = []FolderState{
	FolderReceived,
	FolderProcessing,
	FolderTransfer,
	FolderScanning,
	FolderIndexing,
	FolderDelivery,
	FolderDelivered,
}

var folderStateLabels = map[FolderState]string{
	FolderReceived:   "Reception",
	FolderProcessing: "Physical processing",
	FolderTransfer:   "Transfer",
	FolderScanning:   "Scanning",
	FolderIndexing:   "Indexing",
	FolderDelivery:   "Delivery",
	FolderDelivered:  "Delivered",
}

var folderProgress = map[FolderState]float64{
	FolderReceived:   10,
	FolderProcessing: 25,
	FolderTransfer:   40,
	FolderScanning:   60,
	FolderIndexing:   80,
	FolderDelivery:   95,
	FolderDelivered:  100,
}

func (s FolderState) Label() string { return label(folderStateLabels, s) }

// Progress returns the completion percentage associated with the state
func (s FolderState) Progress() float64 { return folderProgress[s] }

// Position returns the index of the state in FolderPipeline, or -1
func (s FolderState) Position() int {
	for i, st := range FolderPipeline {
		if st == s {
			return i
		}
	}
	return -1
}

// IntakeState is the lifecycle state of a reception batch
type IntakeState string

const (
	IntakeDraft      IntakeState = "draft"
	IntakeValidated  IntakeState = "validated"
	IntakeInProgress IntakeState = "in_progress"
	IntakeCompleted  IntakeState = "completed"
	IntakeCancelled  IntakeState = "cancelled"
)

var intakeStateLabels = map[IntakeState]string{
	IntakeDraft:      "Draft",
	IntakeValidated:  "Validated",
	IntakeInProgress: "In progress",
	IntakeCompleted:  "Completed",
	IntakeCancelled:  "Cancelled",
}

func (s IntakeState) Label() string { return label(intakeStateLabels, s) }

// StageState is shared by processing, scan and index records
type StageState string

const (
	StageInProgress StageState = "in_progress"
	StagePaused     StageState = "paused"
	StageDone       StageState = "done"
	StageValidated  StageState = "validated"
	StageError      StageState = "error"
)

var stageStateLabels = map[StageState]string{
	StageInProgress: "In progress",
	StagePaused:     "Paused",
	StageDone:       "Done",
	StageValidated:  "Validated",
	StageError:      "Error",
}

func (s StageState) Label() string { return label(stageStateLabels, s) }

// Finished reports whether the stage record counts as completed work
func (s StageState) Finished() bool {
	return s == StageDone || s == StageValidated
}

// CartonState is the lifecycle state of a scanning container
type CartonState string

const (
	CartonOpen    CartonState = "open"
	CartonFilling CartonState = "filling"
	CartonFull    CartonState = "full"
	CartonClosed  CartonState = "closed"
	CartonScanned CartonState = "scanned"
)

var cartonStateLabels = map[CartonState]string{
	CartonOpen:    "Open",
	CartonFilling: "Filling",
	CartonFull:    "Full",
	CartonClosed:  "Closed",
	CartonScanned: "Scanned",
}

func (s CartonState) Label() string { return label(cartonStateLabels, s) }

// DeliveryState is the lifecycle state of a delivery batch
type DeliveryState string

const (
	DeliveryPreparing DeliveryState = "preparing"
	DeliveryVerifying DeliveryState = "verifying"
	DeliveryReady     DeliveryState = "ready"
	DeliverySending   DeliveryState = "sending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryError     DeliveryState = "error"
)

var deliveryStateLabels = map[DeliveryState]string{
	DeliveryPreparing: "Preparing",
	DeliveryVerifying: "Verifying",
	DeliveryReady:     "Ready to send",
	DeliverySending:   "Sending",
	DeliveryDelivered: "Delivered",
	DeliveryConfirmed: "Receipt confirmed",
	DeliveryError:     "Error",
}

func (s DeliveryState) Label() string { return label(deliveryStateLabels, s) }

func label[T ~string](table map[T]string, v T) string {
	if l, ok := table[v]; ok {
		return l
	}
	return string(v)
}
