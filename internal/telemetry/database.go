package telemetry

import (
	"database/sql"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenDB opens an instrumented pool. driverName is "postgres" or "sqlite".
func OpenDB(driverName, dsn string) (*sql.DB, error) {
	return otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(dbSystem(driverName)),
	)
}

func dbSystem(driverName string) attribute.KeyValue {
	switch driverName {
	case "sqlite":
		return semconv.DBSystemSqlite
	default:
		return semconv.DBSystemPostgreSQL
	}
}
