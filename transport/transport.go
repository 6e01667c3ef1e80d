// Package transport hands delivery packages over to the recipient. One Sender
// exists per delivery method; the Registry picks it at send time.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Manifest lists the content of a delivery package
type Manifest struct {
	DeliveryNumber string           `json:"delivery_number"`
	Recipient      string           `json:"recipient"`
	GeneratedAt    time.Time        `json:"generated_at"`
	TotalPieces    int              `json:"total_pieces"`
	EstimatedMB    float64          `json:"estimated_mb"`
	Folders        []ManifestFolder `json:"folders"`
}

type ManifestFolder struct {
	Number       string             `json:"number"`
	Radical      string             `json:"radical,omitempty"`
	AgencyCode   string             `json:"agency_code,omitempty"`
	Kind         string             `json:"kind,omitempty"`
	CartonNumber string             `json:"carton_number,omitempty"`
	Pieces       int                `json:"pieces"`
	Documents    []ManifestDocument `json:"documents,omitempty"`
}

type ManifestDocument struct {
	Title           string `json:"title"`
	Type            string `json:"type"`
	Confidentiality string `json:"confidentiality,omitempty"`
	Pages           int    `json:"pages,omitempty"`
	FilePath        string `json:"file_path,omitempty"`
}

// Package is what a Sender transmits
type Package struct {
	Number         string
	Recipient      string
	RecipientEmail string
	Manifest       Manifest
}

func (p Package) ManifestJSON() ([]byte, error) {
	return json.MarshalIndent(p.Manifest, "", "  ")
}

// Receipt describes where the recipient can find the package
type Receipt struct {
	SharePath string
	URL       string
	Password  string
	ExpiresAt *time.Time
}

// Sender transmits a package. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, pkg Package) (*Receipt, error)
}

// ErrNoTransport is returned when no sender is registered for a method
var ErrNoTransport = errors.New("no transport registered for delivery method")

// Registry maps delivery methods to senders
type Registry struct {
	senders map[models.DeliveryMethod]Sender
	mu      sync.RWMutex
	logger  cmtlog.Logger
}

func NewRegistry(logger cmtlog.Logger) *Registry {
	return &Registry{
		senders: make(map[models.DeliveryMethod]Sender),
		logger:  logger,
	}
}

func (r *Registry) Register(method models.DeliveryMethod, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[method] = sender
}

// Dispatch sends pkg through the sender registered for method
func (r *Registry) Dispatch(ctx context.Context, method models.DeliveryMethod, pkg Package) (*Receipt, error) {
	r.mu.RLock()
	sender, ok := r.senders[method]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, method)
	}

	start := time.Now()
	receipt, err := sender.Send(ctx, pkg)
	if err != nil {
		r.logger.Error("Delivery transport failed", "delivery", pkg.Number, "method", method, "err", err)
		return nil, err
	}
	r.logger.Info("Delivery transmitted", "delivery", pkg.Number, "method", method, "took", time.Since(start))
	return receipt, nil
}
