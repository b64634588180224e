package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultWineDrive is the drive letter Wine maps the POSIX root onto by
// default, absent any configured per-path drive mapping.
const DefaultWineDrive = "Z:"

// RewriteWinePath converts a POSIX path into the drive-letter form Wine
// exposes to Windows-binary bridges, spec.md §4.6 "Wine path rewriting
// for Windows-binary bridges on POSIX," grounded on
// original_source/source/backend/plugin/carla_bridge.cpp's substring
// approach: the caller supplies the drive prefix Wine was configured
// with (typically DefaultWineDrive) rather than this function attempting
// real Wine-prefix discovery.
func RewriteWinePath(drivePrefix, posixPath string) string {
	abs := posixPath
	if !filepath.IsAbs(abs) {
		if wd, err := os.Getwd(); err == nil {
			abs = filepath.Join(wd, abs)
		}
	}
	return drivePrefix + strings.ReplaceAll(abs, "/", `\`)
}

// IsWindowsBinaryType reports whether t names a Windows bridge flavor,
// used to decide whether paths handed to the child need RewriteWinePath.
func IsWindowsBinaryType(t BinaryType) bool {
	return t == BinaryWin32 || t == BinaryWin64
}

// SpillCustomDataChunk writes a chunk too large for an OSC argument to a
// temp file and returns its path, spec.md §4.6 "custom-data chunks
// spilled to temp files" for the SetChunkData bridge message.
func SpillCustomDataChunk(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "carla-bridge-chunk-*.bin")
	if err != nil {
		return "", fmt.Errorf("bridge: chunk tempfile: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("bridge: chunk write: %w", err)
	}
	return f.Name(), nil
}

// ReadCustomDataChunk reads back a chunk spilled by SpillCustomDataChunk
// and removes the temp file.
func ReadCustomDataChunk(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: chunk read: %w", err)
	}
	os.Remove(path)
	return data, nil
}
