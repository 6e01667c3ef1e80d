package srvreg

import (
	"errors"
	"net/http"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
)

const dateLayout = "2006-01-02"

// KPIHandler answers /api/kpi?period=<preset> or /api/kpi?from=YYYY-MM-DD&to=YYYY-MM-DD
func (sr *ServiceRegistry) KPIHandler(req *Request) (*Response, error) {
	var (
		period workflow.Period
		err    error
	)
	from, to := req.Query["from"], req.Query["to"]
	if from != "" || to != "" {
		start, startErr := time.Parse(dateLayout, from)
		end, endErr := time.Parse(dateLayout, to)
		if startErr != nil || endErr != nil {
			return errorResponse(http.StatusBadRequest, "from and to must both be dates formatted as YYYY-MM-DD"), nil
		}
		period, err = workflow.DayRange(start, end)
	} else {
		kind := workflow.PeriodKind(req.Query["period"])
		if kind == "" {
			kind = workflow.PeriodMonthly
		}
		period, err = workflow.PeriodFor(kind, sr.now())
	}
	if err != nil {
		return sr.repoErrorResponse(req, &repository.RepositoryError{Code: workflow.CodeConstraint, Message: err.Error()})
	}

	report, dbErr := sr.repository.Report(req.Context(), period)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, report)
}

type inboxResponse struct {
	OperatorID string          `json:"operator_id"`
	Unread     int64           `json:"unread"`
	Messages   []inbox.Message `json:"messages"`
}

func (sr *ServiceRegistry) InboxHandler(req *Request) (*Response, error) {
	operatorID := pathParam(req, 2)
	messages, err := sr.mailbox.Messages(operatorID)
	if err != nil {
		sr.logger.Error("Reading inbox failed", "operator", operatorID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Internal server error"), err
	}
	unread, err := sr.mailbox.Unread(operatorID)
	if err != nil {
		sr.logger.Error("Reading unread counter failed", "operator", operatorID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Internal server error"), err
	}
	if messages == nil {
		messages = []inbox.Message{}
	}
	return jsonResponse(http.StatusOK, inboxResponse{OperatorID: operatorID, Unread: unread, Messages: messages})
}

func (sr *ServiceRegistry) MarkReadHandler(req *Request) (*Response, error) {
	operatorID, messageID := pathParam(req, 2), pathParam(req, 3)
	if err := sr.mailbox.MarkRead(operatorID, messageID); err != nil {
		if errors.Is(err, inbox.ErrMessageNotFound) {
			return errorResponse(http.StatusNotFound, "message not found"), err
		}
		sr.logger.Error("Marking message read failed", "operator", operatorID, "id", messageID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Internal server error"), err
	}
	return jsonResponse(http.StatusOK, map[string]string{"message": "marked as read", "id": messageID})
}

func (sr *ServiceRegistry) JournalHandler(req *Request) (*Response, error) {
	entityType, entityID := pathParam(req, 2), pathParam(req, 3)
	entries, err := sr.mailbox.Journal(entityType, entityID)
	if err != nil {
		sr.logger.Error("Reading journal failed", "entity", entityType, "id", entityID, "err", err)
		return errorResponse(http.StatusInternalServerError, "Internal server error"), err
	}
	if entries == nil {
		entries = []inbox.Entry{}
	}
	return jsonResponse(http.StatusOK, entries)
}

func (sr *ServiceRegistry) CreateOperatorHandler(req *Request) (*Response, error) {
	var body repository.OperatorInput
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	op, dbErr := sr.repository.CreateOperator(body)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, op)
}

func (sr *ServiceRegistry) ListOperatorsHandler(req *Request) (*Response, error) {
	operators, dbErr := sr.repository.ListOperators(models.Group(req.Query["group"]))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, operators)
}
