package srvreg

import (
	"net/http"

	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/workflow"
)

func (sr *ServiceRegistry) CreateDeliveryHandler(req *Request) (*Response, error) {
	archivistID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body repository.DeliveryInput
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	delivery, dbErr := sr.repository.CreateDelivery(body, archivistID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, delivery)
}

func (sr *ServiceRegistry) ListDeliveriesHandler(req *Request) (*Response, error) {
	deliveries, dbErr := sr.repository.ListDeliveries(models.DeliveryState(req.Query["state"]))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, deliveries)
}

func (sr *ServiceRegistry) GetDeliveryHandler(req *Request) (*Response, error) {
	delivery, dbErr := sr.repository.GetDelivery(pathParam(req, 2))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, delivery)
}

func (sr *ServiceRegistry) DeliveryStatisticsHandler(req *Request) (*Response, error) {
	stats, dbErr := sr.repository.DeliveryStatistics()
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, stats)
}

func (sr *ServiceRegistry) deliveryAction(fn func(id, operatorID string) (*models.Delivery, *repository.RepositoryError)) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		delivery, dbErr := fn(pathParam(req, 2), operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, delivery)
	}
}

type deliveryFoldersBody struct {
	FolderIDs []string `json:"folder_ids"`
}

func (sr *ServiceRegistry) SetDeliveryFoldersHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body deliveryFoldersBody
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	delivery, dbErr := sr.repository.SetDeliveryFolders(pathParam(req, 2), body.FolderIDs, operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, delivery)
}

func (sr *ServiceRegistry) SetVerificationsHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body workflow.Verifications
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	delivery, dbErr := sr.repository.SetDeliveryVerifications(pathParam(req, 2), body, operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, delivery)
}

// SendDeliveryHandler runs the transport within the request context
func (sr *ServiceRegistry) SendDeliveryHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	delivery, dbErr := sr.repository.SendDelivery(req.Context(), pathParam(req, 2), operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, delivery)
}

type deliveryErrorBody struct {
	Reason string `json:"reason"`
}

func (sr *ServiceRegistry) ReportDeliveryErrorHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body deliveryErrorBody
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	delivery, dbErr := sr.repository.ReportDeliveryError(pathParam(req, 2), body.Reason, operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, delivery)
}
