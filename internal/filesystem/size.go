package filesystem

import (
	"os"
	"path/filepath"
)

// DirSize returns the total byte length of every regular file beneath dir,
// including nested subdirectories. Symlinks are not followed. Any listing or
// stat failure aborts the walk and is returned.
func DirSize(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, e := range entries {
		if e.IsDir() {
			n, err := DirSize(filepath.Join(dir, e.Name()))
			if err != nil {
				return 0, err
			}
			total += n
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
	}
	return total, nil
}
