// Package startup implements the CLI server's data-directory
// resolution and engine-mismatch guard: the working directory may
// contain kvs_data/ and/or sled_data/; selecting one engine while the
// other engine's directory already holds data is rejected rather than
// silently ignored, so a store is never reopened with the wrong
// backend.
package startup

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the data directory name for engineName ("kvs" ->
// "kvs_data", "sled" -> "sled_data").
func DataDir(engineName string) string {
	return engineName + "_data"
}

var otherEngine = map[string]string{
	"kvs":  "sled",
	"sled": "kvs",
}

// ResolveDataDir validates that workDir does not already hold data
// for the other engine, then returns the (possibly not-yet-existing)
// data directory path for engineName. Callers create it via their
// engine's Open.
func ResolveDataDir(workDir, engineName string) (string, error) {
	other, ok := otherEngine[engineName]
	if !ok {
		return "", fmt.Errorf("startup: unknown engine %q", engineName)
	}

	otherDir := filepath.Join(workDir, DataDir(other))
	if entries, err := os.ReadDir(otherDir); err == nil && len(entries) > 0 {
		return "", fmt.Errorf("startup: %s already holds data for engine %q, refusing to open with engine %q", otherDir, other, engineName)
	}

	return filepath.Join(workDir, DataDir(engineName)), nil
}
