package hyde

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// YearFile is one discovered density grid and the year it encodes.
type YearFile struct {
	Year int
	Path string
}

// popd_1000BC.asc, popd_1500AD.asc, popd_0AD.asc
var yearFilePattern = regexp.MustCompile(`^popd_(\d+)(BC|AD)\.asc$`)

// FileName returns the grid file name for a year. Years before 1 AD use the
// BC suffix with the sign dropped.
func FileName(year int) string {
	if year < 0 {
		return fmt.Sprintf("popd_%dBC.asc", -year)
	}
	return fmt.Sprintf("popd_%dAD.asc", year)
}

// ParseFileName extracts the year from a grid file name. The second return
// is false when the name is not a year-encoded density grid.
func ParseFileName(name string) (int, bool) {
	m := yearFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if m[2] == "BC" {
		year = -year
	}
	return year, true
}

// DiscoverYears scans a directory for density grids and returns them sorted
// by year ascending. Non-matching files are ignored.
func DiscoverYears(dir string) ([]YearFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "hyde: read data dir %s", dir)
	}

	var files []YearFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		year, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}
		files = append(files, YearFile{Year: year, Path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Year < files[j].Year })
	return files, nil
}
