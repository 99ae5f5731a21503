package memory

import "fmt"

// OpenBackend builds the backend named by kind ("file" or "sqlite").
func OpenBackend(kind, dir, sqlitePath string) (Backend, error) {
	switch kind {
	case "", "file":
		return NewFileBackend(dir)
	case "sqlite":
		return OpenSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("memory: unknown backend %q", kind)
	}
}
