package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect holds the few differences between the supported SQL engines.
type dialect struct {
	// name is also the driver name for sql.Open and the migrations subdirectory.
	name string

	// greatest is the scalar "max of two values" function.
	greatest string

	// numbered reports whether placeholders are $1, $2, ... instead of ?.
	numbered bool
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, greatest: "max"}
	postgresDialect = dialect{name: DriverPostgres, greatest: "GREATEST", numbered: true}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// rebind rewrites ? placeholders for engines that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}

	return b.String()
}

// timeLayouts are tried in order when a driver hands back a timestamp as text.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timestamp scans DATETIME/TIMESTAMPTZ columns regardless of whether the driver
// decoded them already. SQLite RETURNING columns carry no declared type and come back as text.
type timestamp struct {
	t *time.Time
}

// Scan implements sql.Scanner.
func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		return fmt.Errorf("storage: null timestamp")
	default:
		return fmt.Errorf("storage: cannot scan %T into timestamp", src)
	}
}

func (ts timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}

	return fmt.Errorf("storage: unrecognized timestamp %q", s)
}
