package hyde

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `eras:
  - name: prehistory
    from_year: -15000
    to_year: -3001
    people_per_dot: 10
  - name: antiquity
    from_year: -3000
    to_year: 499
    people_per_dot: 50
  - name: modern
    from_year: 500
    to_year: 2100
    people_per_dot: 100
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eras.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Eras) != 3 {
		t.Fatalf("got %d eras, want 3", len(m.Eras))
	}
	if m.Eras[0].Name != "prehistory" {
		t.Errorf("eras not sorted by from_year: first is %q", m.Eras[0].Name)
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "eras: []\n",
		"not yaml":       "{{{\n",
		"unnamed era":    "eras:\n  - from_year: 0\n    to_year: 10\n    people_per_dot: 5\n",
		"inverted range": "eras:\n  - name: a\n    from_year: 10\n    to_year: 0\n    people_per_dot: 5\n",
		"zero dot size":  "eras:\n  - name: a\n    from_year: 0\n    to_year: 10\n    people_per_dot: 0\n",
		"duplicate name": "eras:\n  - name: a\n    from_year: 0\n    to_year: 10\n    people_per_dot: 5\n  - name: a\n    from_year: 20\n    to_year: 30\n    people_per_dot: 5\n",
		"overlap":        "eras:\n  - name: a\n    from_year: 0\n    to_year: 10\n    people_per_dot: 5\n  - name: b\n    from_year: 10\n    to_year: 30\n    people_per_dot: 5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadManifest(writeManifest(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPeoplePerDot(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	cases := []struct {
		year int
		want int
	}{
		{-15000, 10},
		{-3001, 10},
		{-3000, 50},
		{0, 50},
		{499, 50},
		{500, 100},
		{2100, 100},
	}
	for _, tc := range cases {
		if got := m.PeoplePerDot(tc.year, 999); got != tc.want {
			t.Errorf("PeoplePerDot(%d) = %d, want %d", tc.year, got, tc.want)
		}
	}
	if got := m.PeoplePerDot(2101, 999); got != 999 {
		t.Errorf("uncovered year = %d, want fallback 999", got)
	}
}
