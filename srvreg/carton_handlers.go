package srvreg

import (
	"net/http"

	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

func (sr *ServiceRegistry) CreateCartonHandler(req *Request) (*Response, error) {
	operatorID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body repository.CartonInput
	if resp, err := decodeBody(req, &body); resp != nil {
		return resp, err
	}
	carton, dbErr := sr.repository.CreateCarton(body, operatorID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, carton)
}

func (sr *ServiceRegistry) ListCartonsHandler(req *Request) (*Response, error) {
	cartons, dbErr := sr.repository.ListCartons(models.CartonState(req.Query["state"]))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, cartons)
}

func (sr *ServiceRegistry) GetCartonHandler(req *Request) (*Response, error) {
	carton, dbErr := sr.repository.GetCarton(pathParam(req, 2))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, carton)
}

func (sr *ServiceRegistry) cartonAction(fn func(id, operatorID string) (*models.Carton, *repository.RepositoryError)) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		carton, dbErr := fn(pathParam(req, 2), operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, carton)
	}
}

type cartonMemberBody struct {
	FolderID string `json:"folder_id"`
}

// cartonMemberAction adds or removes the folder named in the body
func (sr *ServiceRegistry) cartonMemberAction(fn func(cartonID, folderID, operatorID string) (*models.Carton, *repository.RepositoryError)) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		var body cartonMemberBody
		if resp, err := decodeBody(req, &body); resp != nil {
			return resp, err
		}
		if body.FolderID == "" {
			return errorResponse(http.StatusBadRequest, "folder_id is required"), nil
		}
		carton, dbErr := fn(pathParam(req, 2), body.FolderID, operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, carton)
	}
}
