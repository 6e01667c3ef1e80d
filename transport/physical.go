package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PhysicalMedia stages the manifest for burning onto a medium handed over by
// courier. With no staging directory it only acknowledges the delivery.
type PhysicalMedia struct {
	StagingDir string
}

func (p *PhysicalMedia) Send(ctx context.Context, pkg Package) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.StagingDir == "" {
		return &Receipt{}, nil
	}
	dir := filepath.Join(p.StagingDir, pkg.Number)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	manifest, err := pkg.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o640); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	return &Receipt{SharePath: dir}, nil
}
