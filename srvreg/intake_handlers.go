package srvreg

import (
	"net/http"

	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
)

func (sr *ServiceRegistry) CreateIntakeHandler(req *Request) (*Response, error) {
	archivistID, resp := requireOperator(req)
	if resp != nil {
		return resp, nil
	}
	var body repository.IntakeInput
	if resp, err := decodeBody(req, &body); resp != nil {
		sr.logger.Info("Failed to parse body", "error", err.Error())
		return resp, err
	}

	intake, dbErr := sr.repository.CreateIntake(body, archivistID)
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusCreated, intake)
}

func (sr *ServiceRegistry) ListIntakesHandler(req *Request) (*Response, error) {
	intakes, dbErr := sr.repository.ListIntakes(models.IntakeState(req.Query["state"]))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, intakes)
}

func (sr *ServiceRegistry) GetIntakeHandler(req *Request) (*Response, error) {
	intake, dbErr := sr.repository.GetIntake(pathParam(req, 2))
	if dbErr != nil {
		return sr.repoErrorResponse(req, dbErr)
	}
	return jsonResponse(http.StatusOK, intake)
}

// intakeAction adapts an intake transition of the form /api/intakes/:id/<action>
func (sr *ServiceRegistry) intakeAction(fn func(id, operatorID string) (*models.Intake, *repository.RepositoryError)) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		intake, dbErr := fn(pathParam(req, 2), operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, intake)
	}
}
