package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/regiongrow/blobstore"
	minioblob "github.com/hupe1980/regiongrow/blobstore/minio"
	s3blob "github.com/hupe1980/regiongrow/blobstore/s3"
)

// storeConfig is the parsed form of the -store flag.
type storeConfig struct {
	kind     string // "local", "s3" or "minio"
	root     string // directory for local stores
	endpoint string // minio host[:port]
	bucket   string
	prefix   string
}

// parseStore accepts a directory path, file:///dir, s3://bucket/prefix or
// minio://host:port/bucket/prefix.
func parseStore(raw string) (storeConfig, error) {
	if raw == "" {
		return storeConfig{}, fmt.Errorf("empty store location")
	}
	if !strings.Contains(raw, "://") {
		return storeConfig{kind: "local", root: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storeConfig{}, fmt.Errorf("store %q: %w", raw, err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return storeConfig{}, fmt.Errorf("store %q: missing path", raw)
		}
		return storeConfig{kind: "local", root: u.Path}, nil
	case "s3":
		if u.Host == "" {
			return storeConfig{}, fmt.Errorf("store %q: missing bucket", raw)
		}
		return storeConfig{kind: "s3", bucket: u.Host, prefix: strings.Trim(u.Path, "/")}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return storeConfig{}, fmt.Errorf("store %q: want minio://host/bucket[/prefix]", raw)
		}
		return storeConfig{kind: "minio", endpoint: u.Host, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
	default:
		return storeConfig{}, fmt.Errorf("store %q: unsupported scheme %q", raw, u.Scheme)
	}
}

type remoteFlags struct {
	region      string
	endpoint    string
	minioSecure bool
}

func openStore(ctx context.Context, cfg storeConfig, rf remoteFlags) (blobstore.BlobStore, error) {
	switch cfg.kind {
	case "local":
		return blobstore.NewLocalStore(cfg.root), nil
	case "s3":
		return s3blob.New(ctx, cfg.bucket,
			s3blob.WithPrefix(cfg.prefix),
			s3blob.WithRegion(rf.region),
			s3blob.WithEndpoint(rf.endpoint),
		)
	case "minio":
		client, err := minio.New(cfg.endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
			Secure: rf.minioSecure,
			Region: rf.region,
		})
		if err != nil {
			return nil, err
		}
		return minioblob.NewStore(client, cfg.bucket, cfg.prefix), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.kind)
	}
}
