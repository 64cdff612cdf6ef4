package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// IsDuplicateKeyErr reports a MySQL unique-constraint violation (error 1062).
// Both the import batch ActiveKey and the royalty-record (batch, row) index
// rely on it to turn races and replays into no-ops.
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
