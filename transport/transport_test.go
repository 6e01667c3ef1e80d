package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPackage() Package {
	return Package{
		Number:    "LIV/2026/00001",
		Recipient: "CIH Bank",
		Manifest: Manifest{
			DeliveryNumber: "LIV/2026/00001",
			Recipient:      "CIH Bank",
			TotalPieces:    4,
			Folders:        []ManifestFolder{{Number: "DOS/2026/00001", Pieces: 4}},
		},
	}
}

func TestSecureShareWritesManifest(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	share := &SecureShare{Root: root, BaseURL: "https://partage.cih.ma/", Now: func() time.Time { return now }}

	receipt, err := share.Send(context.Background(), testPackage())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(receipt.SharePath, "/partage_securise/livraison_"))
	assert.Len(t, strings.TrimPrefix(receipt.SharePath, "/partage_securise/livraison_"), 8)
	assert.Equal(t, "https://partage.cih.ma"+receipt.SharePath, receipt.URL)
	assert.Len(t, receipt.Password, 12)
	require.NotNil(t, receipt.ExpiresAt)
	assert.Equal(t, now.Add(7*24*time.Hour), *receipt.ExpiresAt)

	raw, err := os.ReadFile(filepath.Join(root, filepath.Base(receipt.SharePath), "manifest.json"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "LIV/2026/00001", manifest.DeliveryNumber)
	assert.Len(t, manifest.Folders, 1)
}

func TestSecureSharePasswordsDiffer(t *testing.T) {
	share := &SecureShare{Root: t.TempDir()}
	a, err := share.Send(context.Background(), testPackage())
	require.NoError(t, err)
	b, err := share.Send(context.Background(), testPackage())
	require.NoError(t, err)
	assert.NotEqual(t, a.SharePath, b.SharePath)
	assert.NotEqual(t, a.Password, b.Password)
}

func TestPhysicalMedia(t *testing.T) {
	receipt, err := (&PhysicalMedia{}).Send(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Empty(t, receipt.URL)

	staging := t.TempDir()
	receipt, err = (&PhysicalMedia{StagingDir: staging}).Send(context.Background(), testPackage())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(receipt.SharePath, "manifest.json"))
	assert.NoError(t, err)
}

func TestEmailNeedsRecipient(t *testing.T) {
	_, err := (&Email{Addr: "localhost:1"}).Send(context.Background(), testPackage())
	assert.Error(t, err)
}

// fakeFTP keeps the directories and files of an in-memory FTP server
type fakeFTP struct {
	dirs  map[string]bool
	files map[string][]byte
	quit  bool
}

func newFakeFTP(existing ...string) *fakeFTP {
	f := &fakeFTP{dirs: map[string]bool{"/": true}, files: map[string][]byte{}}
	for _, d := range existing {
		f.dirs[d] = true
	}
	return f
}

func (f *fakeFTP) Login(string, string) error { return nil }

func (f *fakeFTP) MakeDir(p string) error {
	if f.dirs[p] || !f.dirs[filepath.Dir(p)] {
		return &textproto.Error{Code: 550, Msg: "Create directory operation failed."}
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeFTP) Stor(p string, r io.Reader) error {
	if !f.dirs[filepath.Dir(p)] {
		return &textproto.Error{Code: 553, Msg: "Could not create file."}
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[p] = raw
	return nil
}

func (f *fakeFTP) Quit() error {
	f.quit = true
	return nil
}

func (f *fakeFTP) sender() *FTP {
	return &FTP{
		Addr:      "ftp.cih.ma:21",
		Dir:       "/out",
		PublicURL: "ftp://ftp.cih.ma/",
		dial:      func(context.Context) (ftpConn, error) { return f, nil },
	}
}

func TestFTPCreatesNestedDeliveryDirectory(t *testing.T) {
	server := newFakeFTP("/out", "/out/LIV")

	receipt, err := server.sender().Send(context.Background(), testPackage())
	require.NoError(t, err)
	assert.Equal(t, "/out/LIV/2026/00001", receipt.SharePath)
	assert.Equal(t, "ftp://ftp.cih.ma/out/LIV/2026/00001", receipt.URL)
	assert.True(t, server.dirs["/out/LIV/2026"])
	assert.True(t, server.quit)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(server.files["/out/LIV/2026/00001/manifest.json"], &manifest))
	assert.Equal(t, "LIV/2026/00001", manifest.DeliveryNumber)

	// a relaunch finds every level in place
	_, err = server.sender().Send(context.Background(), testPackage())
	require.NoError(t, err)
}

func TestFTPReportsDirectoryFailures(t *testing.T) {
	sender := &FTP{Dir: "/out", dial: func(context.Context) (ftpConn, error) {
		return &refusingFTP{newFakeFTP()}, nil
	}}
	_, err := sender.Send(context.Background(), testPackage())
	assert.ErrorContains(t, err, "creating /out")

	sender.dial = func(context.Context) (ftpConn, error) { return nil, errors.New("connection refused") }
	_, err = sender.Send(context.Background(), testPackage())
	assert.ErrorContains(t, err, "connection refused")
}

type refusingFTP struct{ *fakeFTP }

func (r *refusingFTP) MakeDir(string) error {
	return &textproto.Error{Code: 530, Msg: "Not logged in."}
}

type stubSender struct {
	receipt *Receipt
	err     error
	calls   int
}

func (s *stubSender) Send(context.Context, Package) (*Receipt, error) {
	s.calls++
	return s.receipt, s.err
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry(cmtlog.NewNopLogger())
	ok := &stubSender{receipt: &Receipt{URL: "https://example.test/x"}}
	broken := &stubSender{err: errors.New("disk full")}
	registry.Register(models.MethodSecureShare, ok)
	registry.Register(models.MethodFTP, broken)

	receipt, err := registry.Dispatch(context.Background(), models.MethodSecureShare, testPackage())
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/x", receipt.URL)

	_, err = registry.Dispatch(context.Background(), models.MethodFTP, testPackage())
	assert.EqualError(t, err, "disk full")

	_, err = registry.Dispatch(context.Background(), models.MethodEmail, testPackage())
	assert.ErrorIs(t, err, ErrNoTransport)

	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, broken.calls)
}
