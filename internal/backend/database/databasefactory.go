package database

import (
	"context"
	"fmt"
	"log/slog"
)

const DefaultNamespace = "oralvis-scans"

func NewDatabase(ctx context.Context, databaseType, connectionString, namespace string) (database ScanStore, err error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	switch databaseType {
	case "sqlite":
		database, err = NewSQLiteDatabase(ctx, connectionString, namespace)
	case "redis":
		database, err = NewRedisDatabase(ctx, connectionString, namespace)
	case "postgres":
		database, err = NewPostgresDatabase(ctx, connectionString, namespace)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("scan store ready", "type", databaseType, "namespace", namespace)
	return database, nil
}
