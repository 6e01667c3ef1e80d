package workflow

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

const (
	MinCartonCapacity = 1
	MaxCartonCapacity = 200
)

func CheckCapacity(capacity int) error {
	if capacity < MinCartonCapacity || capacity > MaxCartonCapacity {
		return reject(CodeConstraint, "carton capacity must be between %d and %d", MinCartonCapacity, MaxCartonCapacity)
	}
	return nil
}

// AddToCarton boxes a folder. The carton becomes filling on the first folder and full at capacity.
func AddToCarton(c *models.Carton, f *models.Folder) error {
	if c.State == models.CartonFull {
		return reject(CodeCapacity, "carton %s is full (%d/%d)", c.Number, c.FolderCount, c.Capacity)
	}
	if c.State != models.CartonOpen && c.State != models.CartonFilling {
		return reject(CodeInvalidState, "carton %s is %s and accepts no folders", c.Number, c.State.Label())
	}
	if c.Available() <= 0 {
		return reject(CodeCapacity, "carton %s is full (%d/%d)", c.Number, c.FolderCount, c.Capacity)
	}
	if f.CartonID != nil {
		return reject(CodeInvalidState, "folder %s is already in a carton", f.Number)
	}
	if c.Kind != "" && f.Kind != "" && c.Kind != f.Kind {
		return reject(CodeConstraint, "folder %s is a %s folder, carton %s holds %s folders",
			f.Number, f.Kind.Label(), c.Number, c.Kind.Label())
	}
	f.CartonID = &c.ID
	f.CartonNumber = c.Number
	c.FolderCount++
	if c.State == models.CartonOpen {
		c.State = models.CartonFilling
	}
	if c.Available() == 0 {
		c.State = models.CartonFull
	}
	return nil
}

// SyncFolderCount sets the count from the folders actually linked to the carton.
// A carton still being filled gets its fill state re-derived.
func SyncFolderCount(c *models.Carton, members int) {
	c.FolderCount = members
	switch c.State {
	case models.CartonOpen, models.CartonFilling, models.CartonFull:
		switch {
		case members == 0:
			c.State = models.CartonOpen
		case members >= c.Capacity:
			c.State = models.CartonFull
		default:
			c.State = models.CartonFilling
		}
	}
}

// RemoveFromCarton unboxes a folder. Not allowed once scanning began.
func RemoveFromCarton(c *models.Carton, f *models.Folder) error {
	if c.State == models.CartonScanned {
		return reject(CodeInvalidState, "carton %s is already being scanned", c.Number)
	}
	if f.CartonID == nil || *f.CartonID != c.ID {
		return reject(CodeInvalidState, "folder %s is not in carton %s", f.Number, c.Number)
	}
	f.CartonID = nil
	f.CartonNumber = ""
	if c.FolderCount > 0 {
		c.FolderCount--
	}
	switch {
	case c.FolderCount == 0:
		c.State = models.CartonOpen
	case c.State == models.CartonFull:
		c.State = models.CartonFilling
	}
	return nil
}

// CloseCarton seals a carton. The caller validates the transfer of its members.
func CloseCarton(c *models.Carton) error {
	if c.State != models.CartonFilling && c.State != models.CartonFull {
		return reject(CodeInvalidState, "carton %s is %s and cannot be closed", c.Number, c.State.Label())
	}
	if c.FolderCount < 1 {
		return reject(CodeInvalidState, "carton %s is empty", c.Number)
	}
	c.State = models.CartonClosed
	return nil
}

func StartCartonScan(c *models.Carton, now time.Time) error {
	if c.State != models.CartonClosed {
		return reject(CodeInvalidState, "carton %s must be closed before scanning, it is %s", c.Number, c.State.Label())
	}
	c.State = models.CartonScanned
	c.ScanStartedAt = &now
	return nil
}

func FinishCartonScan(c *models.Carton, now time.Time) error {
	if c.State != models.CartonScanned || c.ScanStartedAt == nil {
		return reject(CodeInvalidState, "scanning of carton %s has not started", c.Number)
	}
	c.ScanEndedAt = &now
	return nil
}

// IncrementCartonNumber bumps the trailing digits of an open empty carton's number,
// keeping their width. A number without trailing digits gets "-1" appended.
func IncrementCartonNumber(c *models.Carton) error {
	if c.State != models.CartonOpen || c.FolderCount > 0 {
		return reject(CodeInvalidState, "only an open empty carton can be renumbered")
	}
	c.Number = nextNumber(c.Number)
	return nil
}

func nextNumber(number string) string {
	end := len(number)
	start := strings.LastIndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if start == end {
		return number + "-1"
	}
	digits := number[start:end]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return number + "-1"
	}
	next := strconv.Itoa(n + 1)
	if pad := len(digits) - len(next); pad > 0 {
		next = strings.Repeat("0", pad) + next
	}
	return number[:start] + next
}
