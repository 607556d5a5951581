// Package fileid implements the file-id algebra of the on-disk log
// layout: parsing and formatting "<role>_<version>" names, classifying
// a file's role, and the (role, version) ordering used by the
// directory scan and the engine.
package fileid

import (
	"strconv"
	"strings"

	"github.com/kvsdb/kvs/internal/kvserr"
)

// Role identifies which stage of the log lifecycle a file belongs to.
type Role uint8

const (
	// RoleCompact sorts before RoleAppend, which sorts before RoleTemp.
	RoleCompact Role = iota
	RoleAppend
	RoleTemp
)

func (r Role) prefix() string {
	switch r {
	case RoleCompact:
		return "c"
	case RoleAppend:
		return "a"
	case RoleTemp:
		return "t"
	default:
		return "?"
	}
}

// FileId names one log file. Zero value is not meaningful; use Append,
// Compact or Temp to construct one.
type FileId struct {
	Role    Role
	Version uint32
}

// Append constructs an Append(v) file id.
func Append(v uint32) FileId { return FileId{Role: RoleAppend, Version: v} }

// Compact constructs a Compact(v) file id.
func Compact(v uint32) FileId { return FileId{Role: RoleCompact, Version: v} }

// Temp constructs a Temp(v) file id.
func Temp(v uint32) FileId { return FileId{Role: RoleTemp, Version: v} }

// IsAppend reports whether f names an append file.
func (f FileId) IsAppend() bool { return f.Role == RoleAppend }

// IsCompact reports whether f names a compact file.
func (f FileId) IsCompact() bool { return f.Role == RoleCompact }

// IsTemp reports whether f names a temp file.
func (f FileId) IsTemp() bool { return f.Role == RoleTemp }

// String formats f as its on-disk filename.
func (f FileId) String() string {
	return f.Role.prefix() + "_" + strconv.FormatUint(uint64(f.Version), 10)
}

// Less implements the ordering "lexicographic by (role, version)":
// Compact < Append < Temp, then version ascending within a role.
func (f FileId) Less(other FileId) bool {
	if f.Role != other.Role {
		return f.Role < other.Role
	}
	return f.Version < other.Version
}

// Parse parses "<role>_<version>" into a FileId. Any other shape
// fails with *kvserr.ParseFileIdError.
func Parse(name string) (FileId, error) {
	role, rest, ok := strings.Cut(name, "_")
	if !ok {
		return FileId{}, &kvserr.ParseFileIdError{Path: name}
	}
	var r Role
	switch role {
	case "a":
		r = RoleAppend
	case "c":
		r = RoleCompact
	case "t":
		r = RoleTemp
	default:
		return FileId{}, &kvserr.ParseFileIdError{Path: name}
	}
	v, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return FileId{}, &kvserr.ParseFileIdError{Path: name}
	}
	return FileId{Role: r, Version: uint32(v)}, nil
}
