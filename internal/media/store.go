// Package media stores greeting media blobs in object storage, one
// bucket per media kind.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"greetbox/api/internal/util"
)

// Media kinds.
const (
	KindImage = "image"
	KindVideo = "video"
)

// ErrUnknownKind is returned for kinds other than image or video.
var ErrUnknownKind = errors.New("unknown media kind")

type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	ImagesBucket string
	VideosBucket string
	// BaseURL overrides the endpoint-derived public URL prefix, for
	// deployments serving media through a CDN or reverse proxy.
	BaseURL string
}

// Store is a MinIO-backed blob store.
type Store struct {
	client *minio.Client
	cfg    Config
}

// New connects to the object storage endpoint. It does not create
// buckets; call EnsureBuckets during startup.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return &Store{client: client, cfg: cfg}, nil
}

// EnsureBuckets creates the image and video buckets if missing.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.ImagesBucket, s.cfg.VideosBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Object describes a stored blob.
type Object struct {
	Kind       string
	ObjectPath string
	URL        string
}

// Upload stores a blob and returns its public URL. The object name is
// random; the original filename only contributes the extension.
func (s *Store) Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (Object, error) {
	bucket, err := s.bucketFor(kind)
	if err != nil {
		return Object{}, err
	}

	objectPath := util.NewID("") + strings.ToLower(path.Ext(filename))
	_, err = s.client.PutObject(ctx, bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", kind, err)
	}

	return Object{Kind: kind, ObjectPath: objectPath, URL: s.publicURL(bucket, objectPath)}, nil
}

// Remove deletes a blob. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, kind, objectPath string) error {
	bucket, err := s.bucketFor(kind)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, objectPath, err)
	}
	return nil
}

func (s *Store) bucketFor(kind string) (string, error) {
	switch kind {
	case KindImage:
		return s.cfg.ImagesBucket, nil
	case KindVideo:
		return s.cfg.VideosBucket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func (s *Store) publicURL(bucket, objectPath string) string {
	if s.cfg.BaseURL != "" {
		return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/" + bucket + "/" + objectPath
	}
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + s.cfg.Endpoint + "/" + bucket + "/" + objectPath
}
