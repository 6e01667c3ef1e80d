package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpConn is the part of *ftp.ServerConn the sender uses
type ftpConn interface {
	Login(user, password string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// FTP uploads the package manifest into Dir/<delivery number> on an FTP server
type FTP struct {
	Addr     string
	User     string
	Password string
	Dir      string
	// PublicURL is the base of the link handed to the recipient
	PublicURL string
	Timeout   time.Duration

	dial func(ctx context.Context) (ftpConn, error)
}

func (f *FTP) connect(ctx context.Context) (ftpConn, error) {
	if f.dial != nil {
		return f.dial(ctx)
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return ftp.Dial(f.Addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
}

func (f *FTP) Send(ctx context.Context, pkg Package) (*Receipt, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", f.Addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(f.User, f.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	dir := path.Join(f.Dir, pkg.Number)
	if err := makeDirs(conn, dir); err != nil {
		return nil, err
	}

	manifest, err := pkg.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := conn.Stor(path.Join(dir, "manifest.json"), bytes.NewReader(manifest)); err != nil {
		return nil, fmt.Errorf("uploading manifest: %w", err)
	}

	base := f.PublicURL
	if base == "" {
		base = "ftp://" + f.Addr
	}
	return &Receipt{
		SharePath: dir,
		URL:       strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(dir, "/"),
	}, nil
}

// makeDirs creates every level of dir. A 550 reply means the level already exists.
func makeDirs(conn ftpConn, dir string) error {
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		if err := conn.MakeDir(current); err != nil && !isFileUnavailable(err) {
			return fmt.Errorf("creating %s: %w", current, err)
		}
	}
	return nil
}

func isFileUnavailable(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code == ftp.StatusFileUnavailable
}
