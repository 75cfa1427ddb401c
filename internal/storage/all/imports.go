// Package all wires all built-in offset store backends into the storage
// factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories and DDL bootstrappers with the storage package. The following
// kinds become available:
//
//   - "memory", "none" (fileflow/internal/storage/memory)
//   - "sqlite"         (fileflow/internal/storage/sqlite)
//   - "postgres"       (fileflow/internal/storage/postgres)
//   - "mysql"          (fileflow/internal/storage/mysql)
//   - "mssql"          (fileflow/internal/storage/mssql)
//
// Typical usage (in cmd/fileflow/main.go):
//
//	import _ "fileflow/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind:  p.Offsets.Kind,
//	    DSN:   p.Offsets.DSN,
//	    Table: p.Offsets.Table,
//	})
package all

import (
	_ "fileflow/internal/storage/memory"
	_ "fileflow/internal/storage/mssql"
	_ "fileflow/internal/storage/mysql"
	_ "fileflow/internal/storage/postgres"
	_ "fileflow/internal/storage/sqlite"
)
