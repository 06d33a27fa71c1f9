package hyde

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Era maps an inclusive year range to the dot granularity used within it.
// Sparse prehistory uses fewer people per dot so early settlement remains
// visible at all.
type Era struct {
	Name         string `yaml:"name"`
	FromYear     int    `yaml:"from_year"`
	ToYear       int    `yaml:"to_year"`
	PeoplePerDot int    `yaml:"people_per_dot"`
}

// Manifest is an ordered, non-overlapping set of eras.
type Manifest struct {
	Eras []Era `yaml:"eras"`
}

// LoadManifest reads and validates an era manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hyde: read era manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrapf(err, "hyde: parse era manifest %s", path)
	}
	if err := m.validate(); err != nil {
		return nil, eris.Wrapf(err, "hyde: era manifest %s", path)
	}

	sort.Slice(m.Eras, func(i, j int) bool { return m.Eras[i].FromYear < m.Eras[j].FromYear })
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Eras) == 0 {
		return eris.New("no eras defined")
	}
	seen := make(map[string]bool, len(m.Eras))
	for _, e := range m.Eras {
		if e.Name == "" {
			return eris.New("era with empty name")
		}
		if seen[e.Name] {
			return eris.Errorf("duplicate era %q", e.Name)
		}
		seen[e.Name] = true
		if e.FromYear > e.ToYear {
			return eris.Errorf("era %q: from_year %d after to_year %d", e.Name, e.FromYear, e.ToYear)
		}
		if e.PeoplePerDot <= 0 {
			return eris.Errorf("era %q: people_per_dot must be positive", e.Name)
		}
	}
	sorted := make([]Era, len(m.Eras))
	copy(sorted, m.Eras)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromYear < sorted[j].FromYear })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].FromYear <= sorted[i-1].ToYear {
			return eris.Errorf("eras %q and %q overlap", sorted[i-1].Name, sorted[i].Name)
		}
	}
	return nil
}

// PeoplePerDot returns the granularity for a year, falling back to the given
// default when no era covers it.
func (m *Manifest) PeoplePerDot(year, fallback int) int {
	for _, e := range m.Eras {
		if year >= e.FromYear && year <= e.ToYear {
			return e.PeoplePerDot
		}
	}
	return fallback
}
