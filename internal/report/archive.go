package report

import (
	"archive/zip"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/imu-kinematics/internal/fsutil"
)

// ArchivePlots bundles the files at paths into a zip at zipPath. Entries
// are stored under their base names, which must be unique.
func ArchivePlots(fsys fsutil.FileSystem, paths []string, zipPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no plots to archive")
	}
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("archive entry %s is used by both %s and %s", base, prev, p)
		}
		seen[base] = p
	}

	f, err := fsys.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	for _, p := range paths {
		data, err := fsys.ReadFile(p)
		if err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		w, err := zw.Create(filepath.Base(p))
		if err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("failed to add %s: %w", p, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("failed to add %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return f.Close()
}
