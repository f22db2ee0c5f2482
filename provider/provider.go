package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrUnsupportedScheme is returned when no provider serves a server scheme.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// FileInfo represents the standard metadata of a node file or directory
// across different storage abstractions.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// Provider represents a content storage backend. Paths are slash separated
// content paths such as /content/site/en.
type Provider interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the direct children of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens a file for streaming writes, applying metadata if supported.
	OpenWrite(ctx context.Context, path string, metadata FileInfo) (io.WriteCloser, error)

	// RemoveAll deletes path and everything below it. Missing paths are not an error.
	RemoveAll(ctx context.Context, path string) error
}

// SourceOptions addresses the source system of a transfer.
type SourceOptions struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string

	// Bucket is the source bucket for http and https schemes.
	Bucket string

	// Root is the source directory for the file scheme.
	Root string
}

// FromServer resolves the provider for a transfer source. The file scheme reads
// a local directory; http and https address an S3-compatible endpoint at
// scheme://host:port authenticated with the server credentials.
func FromServer(ctx context.Context, opts SourceOptions) (Provider, error) {
	switch opts.Scheme {
	case "file":
		if opts.Root == "" {
			return nil, fmt.Errorf("file source requires a root directory")
		}
		return NewLocalProvider(opts.Root), nil
	case "http", "https":
		if opts.Bucket == "" {
			return nil, fmt.Errorf("%s source requires a bucket", opts.Scheme)
		}
		endpoint := opts.Scheme + "://" + opts.Host
		if opts.Port != "" {
			endpoint += ":" + opts.Port
		}
		s3Opts := []S3Option{WithEndpoint(endpoint)}
		if opts.Username != "" {
			s3Opts = append(s3Opts, WithStaticCredentials(opts.Username, opts.Password))
		}
		return NewS3Provider(ctx, opts.Bucket, "", s3Opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, opts.Scheme)
	}
}

// FromLocation resolves a destination given as a directory or s3://bucket/prefix.
func FromLocation(ctx context.Context, location string) (Provider, error) {
	if s3Path, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(s3Path, "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid s3 location %q", location)
		}
		return NewS3Provider(ctx, bucket, prefix)
	}
	if location == "" {
		return nil, fmt.Errorf("empty destination")
	}
	return NewLocalProvider(location), nil
}
