package models

import "time"

// Timer is the start/pause/end block shared by every stage record.
// It is embedded into Processing, Scan and Indexing.
type Timer struct {
	State          StageState `gorm:"column:state;type:varchar(20);index;not null" json:"state"`
	StartedAt      time.Time  `gorm:"column:started_at;not null;index" json:"started_at"`
	EndedAt        *time.Time `gorm:"column:ended_at;index" json:"ended_at,omitempty"`
	PausedAt       *time.Time `gorm:"column:paused_at" json:"paused_at,omitempty"`
	PauseMinutes   float64    `gorm:"column:pause_minutes;not null" json:"pause_minutes"`
	PauseCount     int        `gorm:"column:pause_count;not null" json:"pause_count"`
	QualityChecked bool       `gorm:"column:quality_checked;not null" json:"quality_checked"`
}

// WallMinutes is the elapsed time between start and end, 0 while unfinished
func (t *Timer) WallMinutes() float64 {
	if t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt).Minutes()
}

// EffectiveMinutes is wall time minus accumulated pause time
func (t *Timer) EffectiveMinutes() float64 {
	return t.WallMinutes() - t.PauseMinutes
}

// Throughput returns units per effective minute
func (t *Timer) Throughput(units int) float64 {
	effective := t.EffectiveMinutes()
	if effective <= 0 || units <= 0 {
		return 0
	}
	return float64(units) / effective
}

// Stage is implemented by every record carrying a Timer
type Stage interface {
	StageTimer() *Timer
	// Units is the work count used for throughput
	Units() int
	// MissingFields lists the fields that must be set before finishing
	MissingFields() []string
	OwnerFolderID() string
}
