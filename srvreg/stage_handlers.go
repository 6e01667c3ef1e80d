package srvreg

import (
	"net/http"

	"github.com/ahmadzakiakmal/dossierflow/repository"
)

var stageCollections = map[string]repository.StageKind{
	"processing": repository.StageProcessing,
	"scans":      repository.StageScan,
	"indexings":  repository.StageIndexing,
}

var stageActions = []repository.StageAction{
	repository.ActionPause,
	repository.ActionResume,
	repository.ActionFinish,
	repository.ActionQuality,
	repository.ActionValidate,
	repository.ActionReopen,
	repository.ActionError,
}

func (sr *ServiceRegistry) getStageHandler(kind repository.StageKind) ServiceHandler {
	return func(req *Request) (*Response, error) {
		rec, dbErr := sr.repository.GetStage(kind, pathParam(req, 2))
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, rec)
	}
}

func (sr *ServiceRegistry) updateStageHandler(kind repository.StageKind) ServiceHandler {
	return func(req *Request) (*Response, error) {
		id := pathParam(req, 2)
		var (
			rec   any
			dbErr *repository.RepositoryError
		)
		switch kind {
		case repository.StageProcessing:
			var patch repository.ProcessingPatch
			if resp, err := decodeBody(req, &patch); resp != nil {
				return resp, err
			}
			rec, dbErr = sr.repository.UpdateProcessing(id, patch)
		case repository.StageScan:
			var patch repository.ScanPatch
			if resp, err := decodeBody(req, &patch); resp != nil {
				return resp, err
			}
			rec, dbErr = sr.repository.UpdateScan(id, patch)
		case repository.StageIndexing:
			var patch repository.IndexingPatch
			if resp, err := decodeBody(req, &patch); resp != nil {
				return resp, err
			}
			rec, dbErr = sr.repository.UpdateIndexing(id, patch)
		}
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, rec)
	}
}

func (sr *ServiceRegistry) stageActionHandler(kind repository.StageKind, action repository.StageAction) ServiceHandler {
	return func(req *Request) (*Response, error) {
		operatorID, resp := requireOperator(req)
		if resp != nil {
			return resp, nil
		}
		rec, dbErr := sr.repository.StageAction(kind, pathParam(req, 2), action, operatorID)
		if dbErr != nil {
			return sr.repoErrorResponse(req, dbErr)
		}
		return jsonResponse(http.StatusOK, rec)
	}
}
