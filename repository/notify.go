package repository

import (
	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

type notice struct {
	group      models.Group
	subject    string
	body       string
	entityType string
	entityID   string
}

// outbox collects the side effects of a transaction that must only happen after commit
type outbox struct {
	notices []notice
	entries []inbox.Entry
}

func (o *outbox) notify(group models.Group, subject, body, entityType, entityID string) {
	o.notices = append(o.notices, notice{group, subject, body, entityType, entityID})
}

func (o *outbox) post(entityType, entityID, operatorID, text string) {
	o.entries = append(o.entries, inbox.Entry{
		EntityType: entityType,
		EntityID:   entityID,
		OperatorID: operatorID,
		Text:       text,
	})
}

// flush delivers queued notices. Every failure is logged and swallowed:
// a notification problem never undoes a committed transition.
func (r *Repository) flush(out *outbox) {
	if r.notifier == nil {
		return
	}
	now := r.now()
	for _, entry := range out.entries {
		entry.At = now
		if err := r.notifier.Post(entry); err != nil {
			r.logger.Error("Failed to write journal entry", "entity", entry.EntityType, "id", entry.EntityID, "err", err)
		}
	}
	for _, n := range out.notices {
		recipients, err := r.recipients(n.group)
		if err != nil {
			r.logger.Error("Failed to resolve notification recipients", "group", n.group, "err", err)
			continue
		}
		if len(recipients) == 0 {
			r.logger.Debug("No recipient for notification", "group", n.group, "subject", n.subject)
			continue
		}
		messages := make([]inbox.Message, 0, len(recipients))
		for _, op := range recipients {
			messages = append(messages, inbox.Message{
				Recipient:  op.ID,
				Group:      string(n.group),
				Subject:    n.subject,
				Body:       n.body,
				EntityType: n.entityType,
				EntityID:   n.entityID,
				CreatedAt:  now,
			})
		}
		if err := r.notifier.Deliver(messages...); err != nil {
			r.logger.Error("Failed to deliver notification", "group", n.group, "subject", n.subject, "err", err)
		}
	}
}

func (r *Repository) recipients(group models.Group) ([]models.Operator, error) {
	var operators []models.Operator
	err := r.db.
		Where("role_group = ? AND active = ? AND receive_notifications = ?", group, true, true).
		Order("operator_id").
		Find(&operators).Error
	return operators, err
}
