package vds

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/binary"
	"github.com/mwantia/vds/backend/consul"
	"github.com/mwantia/vds/backend/postgres"
	"github.com/mwantia/vds/backend/s3"
	"github.com/mwantia/vds/backend/sqlite"
	"github.com/mwantia/vds/backend/text"
	"github.com/mwantia/vds/data"
)

// NewBackend creates an unopened backend of the given kind for location.
// Local kinds take a path; remote kinds take the location part of an
// address as described on ParseAddress.
func NewBackend(kind backend.Kind, location string) (backend.Backend, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", data.ErrInvalidArgument)
	}

	switch kind {
	case backend.KindText:
		return text.NewTextBackend(location), nil
	case backend.KindBinary:
		return binary.NewBinaryBackend(location), nil
	case backend.KindSQLite:
		return sqlite.NewSQLiteBackend(location), nil
	case backend.KindPostgres:
		config, err := parsePostgresLocation(location)
		if err != nil {
			return nil, err
		}
		return wrap(postgres.NewPostgresBackend(config))
	case backend.KindConsul:
		config, err := parseConsulLocation(location)
		if err != nil {
			return nil, err
		}
		return wrap(consul.NewConsulBackend(config))
	case backend.KindS3:
		config, err := parseS3Location(location)
		if err != nil {
			return nil, err
		}
		return wrap(s3.NewS3Backend(config))
	}

	return nil, fmt.Errorf("%w: %s", data.ErrUnsupportedBackend, kind)
}

// wrap keeps a failed constructor from returning a typed nil backend.
func wrap[B backend.Backend](b B, err error) (backend.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// parsePostgresLocation moves the dataset query parameter out of the
// connection string.
func parsePostgresLocation(location string) (*postgres.PostgresBackendConfig, error) {
	if !strings.Contains(location, "://") {
		location = "postgres://" + location
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrInvalidArgument, err)
	}

	query := u.Query()
	dataset := query.Get("dataset")
	query.Del("dataset")
	u.RawQuery = query.Encode()

	return &postgres.PostgresBackendConfig{
		ConnString: u.String(),
		Dataset:    dataset,
	}, nil
}

// parseConsulLocation handles <host>:<port>/<prefix>?token=&datacenter=&namespace=&scheme=
func parseConsulLocation(location string) (*consul.ConsulStoreConfig, error) {
	u, err := url.Parse("consul://" + location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrInvalidArgument, err)
	}

	query := u.Query()
	return &consul.ConsulStoreConfig{
		Address:    u.Host,
		Scheme:     query.Get("scheme"),
		Token:      query.Get("token"),
		Datacenter: query.Get("datacenter"),
		Namespace:  query.Get("namespace"),
		Prefix:     strings.Trim(u.Path, "/"),
	}, nil
}

// parseS3Location handles <access>:<secret>@<host>:<port>/<bucket>/<prefix>?ssl=
func parseS3Location(location string) (*s3.S3StoreConfig, error) {
	u, err := url.Parse("s3://" + location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrInvalidArgument, err)
	}

	config := &s3.S3StoreConfig{
		Endpoint: u.Host,
	}
	if u.User != nil {
		config.AccessKey = u.User.Username()
		config.SecretKey, _ = u.User.Password()
	}

	bucket, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 location '%s' has no bucket", data.ErrInvalidArgument, location)
	}
	config.Bucket = bucket
	config.Prefix = prefix

	if ssl := u.Query().Get("ssl"); ssl != "" {
		useSSL, err := strconv.ParseBool(ssl)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ssl flag '%s'", data.ErrInvalidArgument, ssl)
		}
		config.UseSSL = useSSL
	}

	return config, nil
}
