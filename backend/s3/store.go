package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/kv"
	"github.com/mwantia/vds/data"
)

// S3Store provides a kv.Store on top of an S3 compatible bucket. Every
// object is stored below Prefix.
type S3Store struct {
	client *minio.Client
	config *S3StoreConfig
}

// S3StoreConfig contains configuration options for the S3 store
type S3StoreConfig struct {
	// Endpoint of the S3 service, host[:port] (default: "127.0.0.1:9000")
	Endpoint string

	AccessKey string
	SecretKey string

	// UseSSL enables https
	UseSSL bool

	// Bucket must exist before the store is opened
	Bucket string

	// Prefix for all object keys (default: "vds")
	Prefix string
}

func NewS3Store(config *S3StoreConfig) (*S3Store, error) {
	if config == nil {
		config = &S3StoreConfig{}
	}

	if config.Endpoint == "" {
		config.Endpoint = "127.0.0.1:9000"
	}
	if config.Bucket == "" {
		return nil, data.ErrInvalidArgument
	}

	config.Prefix = strings.Trim(config.Prefix, "/")
	if config.Prefix == "" {
		config.Prefix = "vds"
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &S3Store{
		client: client,
		config: config,
	}, nil
}

// NewS3Backend creates a dataset backend stored under the configured prefix.
func NewS3Backend(config *S3StoreConfig) (*kv.KVBackend, error) {
	store, err := NewS3Store(config)
	if err != nil {
		return nil, err
	}
	return kv.NewKVBackend(store, backend.CapabilityPersistent, backend.CapabilityRemote), nil
}

// Name returns the identifier name defined for this store
func (ss *S3Store) Name() string {
	return "s3://" + ss.config.Endpoint + "/" + ss.config.Bucket + "/" + ss.config.Prefix
}

func (ss *S3Store) buildKey(key string) string {
	return ss.config.Prefix + "/" + strings.TrimPrefix(key, "/")
}

// Ping verifies that the configured bucket exists.
func (ss *S3Store) Ping(ctx context.Context) error {
	exists, err := ss.client.BucketExists(ctx, ss.config.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", ss.config.Bucket)
	}
	return nil
}

func (ss *S3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	object, err := ss.client.GetObject(ctx, ss.config.Bucket, ss.buildKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer object.Close()

	content, err := io.ReadAll(object)
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	return content, true, nil
}

func (ss *S3Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := ss.client.PutObject(ctx, ss.config.Bucket, ss.buildKey(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (ss *S3Store) Delete(ctx context.Context, key string) error {
	return ss.client.RemoveObject(ctx, ss.config.Bucket, ss.buildKey(key), minio.RemoveObjectOptions{})
}

func (ss *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	base := ss.config.Prefix + "/"

	// List all objects with this prefix
	objectsCh := ss.client.ListObjects(ctx, ss.config.Bucket, minio.ListObjectsOptions{
		Prefix:    ss.buildKey(prefix),
		Recursive: true,
	})

	keys := make([]string, 0)
	for object := range objectsCh {
		if object.Err != nil {
			return nil, object.Err
		}
		keys = append(keys, strings.TrimPrefix(object.Key, base))
	}

	sort.Strings(keys)
	return keys, nil
}
