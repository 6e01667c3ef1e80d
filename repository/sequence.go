package repository

import (
	"errors"
	"fmt"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"gorm.io/gorm"
)

const (
	seqIntake   = "intake"
	seqFolder   = "folder"
	seqCarton   = "carton"
	seqDelivery = "delivery"
)

var sequenceDefaults = map[string]models.Sequence{
	seqIntake:   {Prefix: "REC", Padding: 5, Next: 1},
	seqFolder:   {Prefix: "DOS", Padding: 5, Next: 1},
	seqCarton:   {Padding: 6, Next: 1},
	seqDelivery: {Prefix: "LIV", Padding: 5, Next: 1},
}

// nextNumber allocates the next number of a sequence, skipping numbers already
// present in table (they can be typed in by hand).
func (r *Repository) nextNumber(tx *gorm.DB, code string, table any) (string, error) {
	var seq models.Sequence
	err := forUpdate(tx).Where("code = ?", code).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = sequenceDefaults[code]
		seq.Code = code
		if seq.Next == 0 {
			seq.Next = 1
		}
		err = tx.Create(&seq).Error
	}
	if err != nil {
		return "", err
	}

	year := r.now().Year()
	for {
		number := formatNumber(seq, year)
		seq.Next++
		var taken int64
		if err := tx.Model(table).Where("number = ?", number).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken == 0 {
			if err := tx.Save(&seq).Error; err != nil {
				return "", err
			}
			return number, nil
		}
	}
}

func formatNumber(seq models.Sequence, year int) string {
	if seq.Prefix == "" {
		return fmt.Sprintf("%0*d", seq.Padding, seq.Next)
	}
	return fmt.Sprintf("%s/%d/%0*d", seq.Prefix, year, seq.Padding, seq.Next)
}
