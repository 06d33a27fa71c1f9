package fetch

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FetchArchive downloads a zip archive and extracts its density grids into
// destDir. Only .asc entries are kept; the archive's internal directory
// layout is flattened. Returns the extracted grid paths.
func (c *Client) FetchArchive(ctx context.Context, rawURL, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fetch: create dest dir %s", destDir)
	}

	tmp, err := os.CreateTemp("", "footsteps-archive-*.zip")
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create temp file")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	n, err := c.DownloadToFile(ctx, rawURL, tmpPath)
	if err != nil {
		return nil, err
	}
	zap.L().Info("fetch: archive downloaded",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)

	return ExtractGrids(tmpPath, destDir)
}

// ExtractGrids unpacks every .asc entry of a zip archive into destDir,
// discarding archive-internal directories.
func ExtractGrids(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: open archive %s", zipPath)
	}
	defer func() { _ = r.Close() }()

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if !strings.HasSuffix(strings.ToLower(name), ".asc") {
			continue
		}

		destPath := filepath.Join(destDir, name)
		if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
			return extracted, eris.Errorf("fetch: illegal archive path %q", f.Name)
		}

		if err := extractEntry(f, destPath); err != nil {
			return extracted, err
		}
		extracted = append(extracted, destPath)
	}

	if len(extracted) == 0 {
		return nil, eris.Errorf("fetch: no density grids in %s", zipPath)
	}
	return extracted, nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "fetch: open archive entry %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "fetch: create %s", destPath)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrapf(err, "fetch: write %s", destPath)
	}
	return nil
}
