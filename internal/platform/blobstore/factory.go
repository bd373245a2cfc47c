package blobstore

import (
	"context"
	"fmt"
)

// Options carries the driver-specific settings read from configuration.
type Options struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open returns the Store for opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "fs":
		return NewFSStore(opts.FSRoot)
	case "s3":
		return NewS3Store(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}
