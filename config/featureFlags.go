package config

import (
	"os"
	"strings"
)

// ColdStorageEnabled uploads every sealed archive to the cold storage bucket.
//
// Set via env:
// - LEDGER_COLD_STORAGE_ENABLED=true
func ColdStorageEnabled() bool {
	return envBool("LEDGER_COLD_STORAGE_ENABLED")
}

// CatalogEnabled records every sealed archive in the catalog database.
//
// Set via env:
// - LEDGER_CATALOG_ENABLED=true
func CatalogEnabled() bool {
	return envBool("LEDGER_CATALOG_ENABLED")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
