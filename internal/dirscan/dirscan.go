// Package dirscan enumerates a data directory into the sorted append,
// compact, and temp file-id lists the engine needs to replay and
// continue writing.
package dirscan

import (
	"os"
	"sort"

	"github.com/kvsdb/kvs/internal/fileid"
	"github.com/kvsdb/kvs/internal/kvserr"
)

// Extract is the result of scanning a data directory.
type Extract struct {
	CompactFiles []fileid.FileId
	AppendFiles  []fileid.FileId
	TempFiles    []fileid.FileId
	LastVersion  uint32
}

// Scan walks dir one level deep, skipping subdirectories. Every
// regular file must parse as a FileId or the whole scan fails with
// *kvserr.ParseFileIdError. If no append file is found, a synthetic
// Append(LastVersion+1) is appended so a fresh store starts on a_1.
func Scan(dir string) (Extract, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Extract{}, &kvserr.DirError{Path: dir, Err: err}
	}

	var ex Extract
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, err := fileid.Parse(e.Name())
		if err != nil {
			return Extract{}, err
		}
		switch id.Role {
		case fileid.RoleCompact:
			ex.CompactFiles = append(ex.CompactFiles, id)
		case fileid.RoleAppend:
			ex.AppendFiles = append(ex.AppendFiles, id)
		case fileid.RoleTemp:
			ex.TempFiles = append(ex.TempFiles, id)
		}
		if id.Version > ex.LastVersion {
			ex.LastVersion = id.Version
		}
	}

	sortByVersion(ex.CompactFiles)
	sortByVersion(ex.AppendFiles)
	sortByVersion(ex.TempFiles)

	if len(ex.AppendFiles) == 0 {
		synth := fileid.Append(ex.LastVersion + 1)
		ex.AppendFiles = append(ex.AppendFiles, synth)
	}

	return ex, nil
}

func sortByVersion(ids []fileid.FileId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Version < ids[j].Version })
}
