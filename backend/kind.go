package backend

import (
	"fmt"
	"strings"

	"github.com/mwantia/vds/data"
)

// Kind names a physical backend implementation.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindSQLite
	KindPostgres
	KindConsul
	KindS3
)

var kindNames = map[Kind]string{
	KindText:     "text",
	KindBinary:   "binary",
	KindSQLite:   "sqlite",
	KindPostgres: "postgres",
	KindConsul:   "consul",
	KindS3:       "s3",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String and accepts a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return KindText, nil
	case "binary", "bin":
		return KindBinary, nil
	case "sqlite", "sqlite3":
		return KindSQLite, nil
	case "postgres", "postgresql", "psql":
		return KindPostgres, nil
	case "consul":
		return KindConsul, nil
	case "s3", "minio":
		return KindS3, nil
	}

	return 0, fmt.Errorf("%w: '%s'", data.ErrUnsupportedBackend, s)
}
