package dialect

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/relschema-eu/relschema/apperrors"
	sqlite "modernc.org/sqlite"
)

// SQLite extended result codes for constraint violations, from
// https://www.sqlite.org/rescode.html. modernc.org/sqlite surfaces these
// verbatim through sqlite.Error.Code().
const (
	sqliteConstraintUnique     = 2067 // SQLITE_CONSTRAINT_UNIQUE
	sqliteConstraintForeignKey = 787  // SQLITE_CONSTRAINT_FOREIGNKEY
	sqliteConstraintCheck      = 275  // SQLITE_CONSTRAINT_CHECK
	sqliteConstraintPrimaryKey = 1555 // SQLITE_CONSTRAINT_PRIMARYKEY
)

// classifyPostgresError maps pgx constraint errors onto the single
// ClassifyError entry point every dialect exposes.
func classifyPostgresError(err error) *apperrors.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperrors.Database(err, "unique constraint %q violated", pgErr.ConstraintName)
		case "23503":
			return apperrors.Database(err, "foreign key constraint %q violated", pgErr.ConstraintName)
		case "23514":
			return apperrors.Database(err, "check constraint %q violated", pgErr.ConstraintName)
		}
	}
	return apperrors.Database(err, "database error")
}

func classifyMySQLError(err error) *apperrors.Error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return apperrors.Database(err, "unique constraint violated")
		case 1452, 1216:
			return apperrors.Database(err, "foreign key constraint violated")
		case 3819, 4025:
			return apperrors.Database(err, "check constraint violated")
		}
	}
	return apperrors.Database(err, "database error")
}

func classifySQLiteError(err error) *apperrors.Error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return apperrors.Database(err, "unique constraint violated")
		case sqliteConstraintForeignKey:
			return apperrors.Database(err, "foreign key constraint violated")
		case sqliteConstraintCheck:
			return apperrors.Database(err, "check constraint violated")
		}
	}
	return apperrors.Database(err, "database error")
}
