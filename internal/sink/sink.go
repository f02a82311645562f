// Package sink publishes a run's tables and reports. A store writes a batch
// of objects as a unit: either every object becomes visible or none does.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/internal/config"
	"github.com/periospot/implantgen/pkg/errors"
)

// Drivers.
const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

// Metadata keys attached to every object of a run.
const (
	MetaRunID = "run-id"
	MetaSeed  = "seed"
)

// Object is one artifact of a run.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Info describes a written object.
type Info struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// Store writes batches of objects.
type Store interface {
	Driver() string
	// Location names where objects land, for logs.
	Location() string
	// WriteAll publishes objects with the given metadata. On error no
	// object of the batch is left behind.
	WriteAll(ctx context.Context, objects []Object, meta map[string]string) ([]Info, error)
}

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.SinkConfig, opts ...S3Option) (Store, error) {
	switch cfg.Kind {
	case DriverFS:
		return NewFS(cfg.Dir)
	case DriverS3:
		return NewS3(ctx, cfg.S3, opts...)
	default:
		return nil, errors.NewConfigError("sink", "kind", "unknown sink driver", cfg.Kind)
	}
}

// CSVObject renders a table as <name>.csv.
func CSVObject(t *dataset.Table) (Object, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return Object{}, errors.Wrapf(err, "render %s", t.Name())
	}
	return Object{Key: t.Name() + ".csv", ContentType: "text/csv", Body: buf.Bytes()}, nil
}

// JSONObject wraps an already encoded JSON document.
func JSONObject(key string, body []byte) Object {
	return Object{Key: key, ContentType: "application/json", Body: body}
}

// validateKeys rejects empty, absolute, traversing and duplicate keys.
func validateKeys(objects []Object) error {
	seen := make(map[string]bool, len(objects))
	for _, o := range objects {
		k := o.Key
		switch {
		case strings.TrimSpace(k) == "":
			return errors.NewValidationError("key", "empty key", k)
		case strings.Contains(k, ".."):
			return errors.NewValidationError("key", "key contains '..'", k)
		case strings.HasPrefix(k, "/"):
			return errors.NewValidationError("key", "absolute key", k)
		case seen[k]:
			return errors.NewValidationError("key", fmt.Sprintf("duplicate key in batch: %s", k), k)
		}
		seen[k] = true
	}
	return nil
}
