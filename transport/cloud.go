package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// CloudStorage writes the manifest to a bucket object, once. Re-sending a
// delivery whose object already exists is treated as success.
type CloudStorage struct {
	Bucket     *storage.BucketHandle
	BucketName string
	Prefix     string
}

func (c *CloudStorage) Send(ctx context.Context, pkg Package) (*Receipt, error) {
	manifest, err := pkg.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	objectName := c.Prefix + pkg.Number + "/manifest.json"
	writer := c.Bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"

	_, err = io.Copy(writer, bytes.NewReader(manifest))
	if err == nil {
		err = writer.Close()
	} else {
		_ = writer.Close()
	}
	if err != nil && !alreadyExists(err) {
		return nil, fmt.Errorf("writing %s: %w", objectName, err)
	}

	return &Receipt{
		SharePath: objectName,
		URL:       fmt.Sprintf("gs://%s/%s", c.BucketName, objectName),
	}, nil
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
