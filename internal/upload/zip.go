package upload

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// extractShapefile unpacks a zipped shapefile into destDir and returns the
// path of the first .shp member.
func extractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "upload: open zip archive")
	}
	defer r.Close() //nolint:errcheck

	var shpPath string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return "", err
		}
		if shpPath == "" && strings.EqualFold(filepath.Ext(path), ".shp") {
			shpPath = path
		}
	}
	if shpPath == "" {
		return "", eris.Errorf("upload: no .shp file in %s", filepath.Base(zipPath))
	}
	return shpPath, nil
}

// extractEntry writes a single archive member under destDir. Directories
// yield an empty path.
func extractEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("upload: illegal path %q in zip", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "upload: create directory")
		}
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "upload: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "upload: open zip entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "upload: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "upload: write file")
	}
	return destPath, nil
}
