package workflow

import (
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

func CheckProcessing(p *models.Processing) error {
	if p.PiecesProcessed < 0 {
		return reject(CodeConstraint, "pieces processed cannot be negative")
	}
	if p.Radical != "" && len(p.Radical) < 3 {
		return reject(CodeConstraint, "radical must contain at least 3 characters")
	}
	if err := checkAgencyCode(p.AgencyCode); err != nil {
		return err
	}
	return CheckTimer(&p.Timer)
}

func CheckScan(s *models.Scan) error {
	if s.Pieces < 0 || s.Pages < 0 {
		return reject(CodeConstraint, "piece and page counts cannot be negative")
	}
	if s.Resolution != 0 && !s.Resolution.Valid() {
		return reject(CodeConstraint, "unsupported resolution %d dpi", s.Resolution)
	}
	if s.Format != "" && !s.Format.Valid() {
		return reject(CodeConstraint, "unsupported file format %q", s.Format)
	}
	if s.Kind != "" && !s.Kind.Valid() {
		return reject(CodeConstraint, "unknown folder kind %q", s.Kind)
	}
	if s.QualityChecked && s.State != models.StageDone && s.State != models.StageValidated {
		return reject(CodeInvalidState, "quality control can only be recorded on finished work")
	}
	return CheckTimer(&s.Timer)
}

func CheckIndexing(i *models.Indexing, now time.Time) error {
	if i.PiecesIndexed < 0 || i.Pages < 0 {
		return reject(CodeConstraint, "piece and page counts cannot be negative")
	}
	if i.DocumentType != "" && !i.DocumentType.Valid() {
		return reject(CodeConstraint, "unknown document type %q", i.DocumentType)
	}
	if i.Confidentiality != "" && !i.Confidentiality.Valid() {
		return reject(CodeConstraint, "unknown confidentiality level %q", i.Confidentiality)
	}
	if i.DocumentDate != nil && i.DocumentDate.After(now) {
		return reject(CodeConstraint, "document date cannot be in the future")
	}
	return CheckTimer(&i.Timer)
}
