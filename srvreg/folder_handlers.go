package srvreg

import (
	"net/http"

	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

func (sr *ServiceRegistry) ListFoldersHandler(req *Request) (*Response, error) {
	folders, dbErr := sr.repository.ListFolders(repository.FolderFilter{
		State:    models.FolderState(req.Query["state"]),
		IntakeID: req.Query["intake_id"],
		CartonID: req.Query["carton_id"],
	})
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, folders)
}

func (sr *ServiceRegistry) GetFolderHandler(req *Request) (*Response, error) {
	folder, dbErr := sr.repository.GetFolder(pathParam(req, 2))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, folder)
}

func (sr *ServiceRegistry) UpdateFolderHandler(req *Request) (*Response, error) {
	var patch repository.FolderPatch
	if resp, err := decodeBody(req, &patch); resp != nil {
		return resp, err
	}
	folder, dbErr := sr.repository.UpdateFolder(pathParam(req, 2), patch)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, folder)
}

// folderAction adapts a folder transition of the form /api/folders/:id/<action>
func (sr *ServiceRegistry) folderAction(fn func(id, operatorID string) (*models.Folder, *repository.RepositoryError)) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		folder, dbErr := fn(pathParam(req, 2), operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, folder)
	}
}

type deliverFolderBody struct {
	DeliveryID string `json:"delivery_id"`
}

func (sr *ServiceRegistry) DeliverFolderHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body deliverFolderBody
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	if body.DeliveryID == "" {
		return errorResponse(http.StatusBadRequest, "delivery_id is required"), nil
	}
	folder, dbErr := sr.repository.DeliverFolder(pathParam(req, 2), body.DeliveryID, operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, folder)
}

func (sr *ServiceRegistry) OpenProcessingHandler(req *Request) (*Response, error) {
	agentID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var patch repository.ProcessingPatch
	if resp, err := decodeBody(req, &patch); resp != nil {
		return resp, err
	}
	rec, dbErr := sr.repository.OpenProcessing(pathParam(req, 2), agentID, patch)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, rec)
}

func (sr *ServiceRegistry) OpenScanHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var patch repository.ScanPatch
	if resp, err := decodeBody(req, &patch); resp != nil {
		return resp, err
	}
	rec, dbErr := sr.repository.OpenScan(pathParam(req, 2), operatorID, patch)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, rec)
}

func (sr *ServiceRegistry) OpenIndexingHandler(req *Request) (*Response, error) {
	agentID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var patch repository.IndexingPatch
	if resp, err := decodeBody(req, &patch); resp != nil {
		return resp, err
	}
	rec, dbErr := sr.repository.OpenIndexing(pathParam(req, 2), agentID, patch)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, rec)
}
