package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// SecureShare publishes the package manifest in a per-delivery directory of a
// shared filesystem and hands out a password protected link.
type SecureShare struct {
	Root           string
	BaseURL        string
	Expiry         time.Duration
	PasswordLength int
	Now            func() time.Time
}

func (s *SecureShare) Send(ctx context.Context, pkg Package) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	dirName := "livraison_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	sharePath := path.Join("/partage_securise", dirName)
	dir := filepath.Join(s.Root, dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating share directory: %w", err)
	}

	manifest, err := pkg.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifest, 0o640); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	length := s.PasswordLength
	if length <= 0 {
		length = 12
	}
	password, err := randomPassword(length)
	if err != nil {
		return nil, err
	}
	expiry := s.Expiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	expires := now().Add(expiry)

	return &Receipt{
		SharePath: sharePath,
		URL:       strings.TrimSuffix(s.BaseURL, "/") + sharePath,
		Password:  password,
		ExpiresAt: &expires,
	}, nil
}

func randomPassword(length int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for range length {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
