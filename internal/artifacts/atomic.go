package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path by first writing a sibling temp
// file in the same directory, then renaming it over the target. This
// avoids leaving a truncated artifact visible to a concurrently reading
// phase if the process crashes mid-write (§9: "write-to-sibling-tempfile-
// then-rename within the same directory").
//
// The temp file lives beside its target rather than in a shared scratch
// directory specifically so the rename is always same-filesystem; a
// cross-filesystem rename is not atomic on any platform.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}

	// os.Rename replaces an existing destination atomically on POSIX.
	// On Windows the target must not exist, so callers on that platform
	// would need a remove-then-rename fallback; this pipeline targets
	// POSIX filesystems only.
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	return nil
}
