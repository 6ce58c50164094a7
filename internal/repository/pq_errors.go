package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// isUniqueViolation はerrが一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
