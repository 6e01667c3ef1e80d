package repository

import (
	"strings"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperatorInput struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Group                models.Group `json:"group"`
	Email                string       `json:"email"`
	ReceiveNotifications *bool        `json:"receive_notifications"`
}

// CreateOperator registers an operator. Notifications are on unless disabled.
func (r *Repository) CreateOperator(in OperatorInput) (*models.Operator, *RepositoryError) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("operator name is required")
	}
	if !in.Group.Valid() {
		return nil, invalidInput("unknown operator group %q", in.Group)
	}
	op := models.Operator{
		ID:                   in.ID,
		Name:                 in.Name,
		Group:                in.Group,
		Email:                in.Email,
		Active:               true,
		ReceiveNotifications: true,
	}
	if op.ID == "" {
		op.ID = "OPR-" + uuid.NewString()[:8]
	}
	if in.ReceiveNotifications != nil {
		op.ReceiveNotifications = *in.ReceiveNotifications
	}

	repoErr := r.inTx("Operator", func(tx *gorm.DB, _ *outbox) error {
		return tx.Create(&op).Error
	})
	if repoErr != nil {
		return nil, repoErr
	}
	return &op, nil
}

func (r *Repository) ListOperators(group models.Group) ([]models.Operator, *RepositoryError) {
	var operators []models.Operator
	q := r.db.Order("operator_id")
	if group != "" {
		q = q.Where("role_group = ?", group)
	}
	if err := q.Find(&operators).Error; err != nil {
		return nil, toRepositoryError(err, "Operator")
	}
	return operators, nil
}
