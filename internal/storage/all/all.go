// Package all registers every built-in reject sink with the storage factory:
// "sqlite", "postgres", "mssql" and "csv". Import it for side effects.
package all

import (
	_ "rawcheck/internal/storage/csvfile"
	_ "rawcheck/internal/storage/mssql"
	_ "rawcheck/internal/storage/postgres"
	_ "rawcheck/internal/storage/sqlite"
)
