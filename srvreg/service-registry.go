package srvreg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// OperatorHeader carries the identity of the operator performing a request
const OperatorHeader = "X-Operator-ID"

// Request represents the client's original HTTP request
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      map[string]string `json:"query,omitempty"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	RemoteAddr string            `json:"remote_addr"`
	RequestID  string            `json:"request_id"`
	Timestamp  time.Time         `json:"timestamp"`

	ctx context.Context
}

// Context returns the context of the underlying HTTP request
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// OperatorID returns the operator named in the X-Operator-ID header
func (r *Request) OperatorID() string {
	return strings.TrimSpace(r.Headers[http.CanonicalHeaderKey(OperatorHeader)])
}

// Response represents the computed response of a handler
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Error      string            `json:"error,omitempty"`
}

// ServiceHandler is a function type for service handlers
type ServiceHandler func(*Request) (*Response, error)

// RouteKey is used to uniquely identify a route
type RouteKey struct {
	Method string
	Path   string
}

// Mailbox is the read side of the operator inbox and the activity journal
type Mailbox interface {
	Messages(recipient string) ([]inbox.Message, error)
	Unread(recipient string) (int64, error)
	MarkRead(recipient, id string) error
	Journal(entityType, entityID string) ([]inbox.Entry, error)
}

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers    map[RouteKey]ServiceHandler
	exactRoutes map[RouteKey]bool // Whether a route is exact or pattern-based
	mu          sync.RWMutex
	repository  *repository.Repository
	mailbox     Mailbox
	logger      cmtlog.Logger
	now         func() time.Time
}

// ConvertHttpRequest converts an http.Request to Request
func ConvertHttpRequest(r *http.Request, requestID string) (*Request, error) {
	headers := make(map[string]string)
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	body := ""
	if r.Body != nil {
		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
		if err != nil {
			return nil, err
		}
		body = compactJSON(string(bodyBytes))
	}

	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      query,
		Headers:    headers,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		RequestID:  requestID,
		Timestamp:  time.Now(),
		ctx:        r.Context(),
	}, nil
}

// NewServiceRegistry creates a new service registry. clock may be nil.
func NewServiceRegistry(
	repository *repository.Repository,
	mailbox Mailbox,
	logger cmtlog.Logger,
	clock func() time.Time,
) *ServiceRegistry {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &ServiceRegistry{
		handlers:    make(map[RouteKey]ServiceHandler),
		exactRoutes: make(map[RouteKey]bool),
		repository:  repository,
		mailbox:     mailbox,
		logger:      logger,
		now:         clock,
	}
}

// RegisterHandler registers a new service handler
func (sr *ServiceRegistry) RegisterHandler(method, path string, isExactPath bool, handler ServiceHandler) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	key := RouteKey{Method: strings.ToUpper(method), Path: path}
	sr.handlers[key] = handler
	sr.exactRoutes[key] = isExactPath
}

// GetHandlerForPath finds the appropriate handler for a given path and a boolean of whether or not the handler was found
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (ServiceHandler, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	method = strings.ToUpper(method)
	key := RouteKey{Method: method, Path: path}
	if handler, ok := sr.handlers[key]; ok {
		if sr.exactRoutes[key] {
			return handler, true
		}
	}

	for routeKey, handler := range sr.handlers {
		if routeKey.Method != method {
			continue
		}
		if sr.exactRoutes[routeKey] {
			continue
		}
		if matchPath(routeKey.Path, path) {
			return handler, true
		}
	}

	return nil, false
}

// matchPath does simple pattern matching for routes.
// It supports patterns like "/folders/:id" matching "/folders/123"
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := range len(patternParts) {
		if strings.HasPrefix(patternParts[i], ":") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// actionRoutes registers one POST route per action under base
func (sr *ServiceRegistry) actionRoutes(base string, handlers map[string]ServiceHandler) {
	for action, handler := range handlers {
		sr.RegisterHandler(http.MethodPost, base+"/"+action, false, handler)
	}
}

// RegisterDefaultServices sets up the workflow API
func (sr *ServiceRegistry) RegisterDefaultServices() {
	// Operators
	sr.RegisterHandler(http.MethodPost, "/api/operators", true, sr.CreateOperatorHandler)
	sr.RegisterHandler(http.MethodGet, "/api/operators", true, sr.ListOperatorsHandler)

	// Intakes
	sr.RegisterHandler(http.MethodPost, "/api/intakes", true, sr.CreateIntakeHandler)
	sr.RegisterHandler(http.MethodGet, "/api/intakes", true, sr.ListIntakesHandler)
	sr.RegisterHandler(http.MethodGet, "/api/intakes/:id", false, sr.GetIntakeHandler)
	sr.actionRoutes("/api/intakes/:id", map[string]ServiceHandler{
		"validate": sr.intakeAction(sr.repository.ValidateIntake),
		"start":    sr.intakeAction(sr.repository.StartIntake),
		"complete": sr.intakeAction(sr.repository.CompleteIntake),
		"cancel":   sr.intakeAction(sr.repository.CancelIntake),
		"draft":    sr.intakeAction(sr.repository.ResetIntake),
	})

	// Folders
	sr.RegisterHandler(http.MethodGet, "/api/folders", true, sr.ListFoldersHandler)
	sr.RegisterHandler(http.MethodGet, "/api/folders/:id", false, sr.GetFolderHandler)
	sr.RegisterHandler(http.MethodPatch, "/api/folders/:id", false, sr.UpdateFolderHandler)
	sr.actionRoutes("/api/folders/:id", map[string]ServiceHandler{
		"start-processing":    sr.folderAction(sr.repository.StartFolderProcessing),
		"complete-processing": sr.folderAction(sr.repository.CompleteFolderProcessing),
		"validate-transfer":   sr.folderAction(sr.repository.ValidateFolderTransfer),
		"complete-scanning":   sr.folderAction(sr.repository.CompleteFolderScanning),
		"complete-indexing":   sr.folderAction(sr.repository.CompleteFolderIndexing),
		"step-back":           sr.folderAction(sr.repository.StepBackFolder),
		"deliver":             sr.DeliverFolderHandler,
		"processing":          sr.OpenProcessingHandler,
		"scan":                sr.OpenScanHandler,
		"indexing":            sr.OpenIndexingHandler,
	})

	// Stage records
	for collection, kind := range stageCollections {
		base := "/api/" + collection + "/:id"
		sr.RegisterHandler(http.MethodGet, base, false, sr.getStageHandler(kind))
		sr.RegisterHandler(http.MethodPatch, base, false, sr.updateStageHandler(kind))
		actions := make(map[string]ServiceHandler)
		for _, action := range stageActions {
			actions[string(action)] = sr.stageActionHandler(kind, action)
		}
		sr.actionRoutes(base, actions)
	}

	// Cartons
	sr.RegisterHandler(http.MethodPost, "/api/cartons", true, sr.CreateCartonHandler)
	sr.RegisterHandler(http.MethodGet, "/api/cartons", true, sr.ListCartonsHandler)
	sr.RegisterHandler(http.MethodGet, "/api/cartons/:id", false, sr.GetCartonHandler)
	sr.actionRoutes("/api/cartons/:id", map[string]ServiceHandler{
		"folders":     sr.cartonMemberAction(sr.repository.AddFolderToCarton),
		"remove":      sr.cartonMemberAction(sr.repository.RemoveFolderFromCarton),
		"close":       sr.cartonAction(sr.repository.CloseCarton),
		"start-scan":  sr.cartonAction(sr.repository.StartCartonScan),
		"finish-scan": sr.cartonAction(sr.repository.FinishCartonScan),
		"increment":   sr.cartonAction(sr.repository.IncrementCartonNumber),
	})

	// Deliveries
	sr.RegisterHandler(http.MethodPost, "/api/deliveries", true, sr.CreateDeliveryHandler)
	sr.RegisterHandler(http.MethodGet, "/api/deliveries", true, sr.ListDeliveriesHandler)
	sr.RegisterHandler(http.MethodGet, "/api/deliveries/statistics", true, sr.DeliveryStatisticsHandler)
	sr.RegisterHandler(http.MethodGet, "/api/deliveries/:id", false, sr.GetDeliveryHandler)
	sr.RegisterHandler(http.MethodPut, "/api/deliveries/:id/folders", false, sr.SetDeliveryFoldersHandler)
	sr.actionRoutes("/api/deliveries/:id", map[string]ServiceHandler{
		"prepare":       sr.deliveryAction(sr.repository.PrepareDelivery),
		"verifications": sr.SetVerificationsHandler,
		"verify-all":    sr.deliveryAction(sr.repository.VerifyAllDelivery),
		"ready":         sr.deliveryAction(sr.repository.MarkDeliveryReady),
		"send":          sr.SendDeliveryHandler,
		"confirm":       sr.deliveryAction(sr.repository.ConfirmDelivery),
		"error":         sr.ReportDeliveryErrorHandler,
		"relaunch":      sr.deliveryAction(sr.repository.RelaunchDelivery),
	})

	// KPI, inbox and journal
	sr.RegisterHandler(http.MethodGet, "/api/kpi", true, sr.KPIHandler)
	sr.RegisterHandler(http.MethodGet, "/api/inbox/:operatorID", false, sr.InboxHandler)
	sr.RegisterHandler(http.MethodPost, "/api/inbox/:operatorID/:messageID/read", false, sr.MarkReadHandler)
	sr.RegisterHandler(http.MethodGet, "/api/journal/:entity/:id", false, sr.JournalHandler)
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)
	if !found {
		return errorResponse(http.StatusNotFound, fmt.Sprintf("Service not found for %s %s", req.Method, req.Path)), nil
	}
	return handler(req)
}

func compactJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return strings.TrimSpace(body)
	}
	return buf.String()
}
