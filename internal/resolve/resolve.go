// Package resolve maps free-text school mentions to canonical schools.
//
// Resolution runs an ordered chain of lookups and stops at the first hit:
// the run-scoped memo cache, an exact name or alias match, the abbreviation
// table, and a unique substring match. Misses are counted so operators can
// extend the alias data.
package resolve

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/admissions-ingest/internal/model"
)

//go:embed aliases.yaml
var defaultAbbreviations []byte

// Step names the lookup that resolved a mention.
type Step string

const (
	StepCache        Step = "cache"
	StepExact        Step = "exact"
	StepAbbreviation Step = "abbreviation"
	StepSubstring    Step = "substring"
)

// Options controls resolver policy.
type Options struct {
	// AbbreviationsFirst consults the abbreviation table before substring
	// matching, so short forms like "MIT" are not captured by names that
	// happen to contain them.
	AbbreviationsFirst bool
	// Abbreviations extends or overrides the embedded table.
	Abbreviations map[string]string
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{AbbreviationsFirst: true}
}

// Match is a resolved mention.
type Match struct {
	School model.CanonicalSchool
	Step   Step
}

// Unresolved is a mention that no step could resolve, with its frequency.
type Unresolved struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type cacheEntry struct {
	school model.CanonicalSchool
	found  bool
}

type missEntry struct {
	name  string
	count int
}

// Resolver resolves school mentions against a fixed set of canonical schools.
// A Resolver is scoped to one run; its cache is never invalidated.
type Resolver struct {
	opts    Options
	schools []model.CanonicalSchool // ascending ID
	folded  [][]string              // folded name then aliases, parallel to schools
	exact   map[string]int          // folded name/alias -> index into schools
	abbrev  map[string]string       // folded abbreviation -> canonical name

	mu     sync.Mutex
	caser  cases.Caser
	cache  map[string]cacheEntry
	misses map[string]*missEntry
}

// New builds a Resolver over schools.
func New(schools []model.CanonicalSchool, opts Options) (*Resolver, error) {
	var table map[string]string
	if err := yaml.Unmarshal(defaultAbbreviations, &table); err != nil {
		return nil, eris.Wrap(err, "resolve: parse embedded abbreviations")
	}

	r := &Resolver{
		opts:   opts,
		caser:  cases.Fold(),
		exact:  make(map[string]int),
		abbrev: make(map[string]string, len(table)+len(opts.Abbreviations)),
		cache:  make(map[string]cacheEntry),
		misses: make(map[string]*missEntry),
	}
	for k, v := range table {
		r.abbrev[r.fold(k)] = v
	}
	for k, v := range opts.Abbreviations {
		r.abbrev[r.fold(k)] = v
	}

	r.schools = append([]model.CanonicalSchool(nil), schools...)
	sort.SliceStable(r.schools, func(i, j int) bool { return r.schools[i].ID < r.schools[j].ID })

	r.folded = make([][]string, len(r.schools))
	for i, s := range r.schools {
		names := make([]string, 0, 1+len(s.Aliases))
		for _, n := range append([]string{s.Name}, s.Aliases...) {
			f := r.fold(n)
			if f == "" {
				continue
			}
			names = append(names, f)
			if _, dup := r.exact[f]; !dup {
				r.exact[f] = i
			}
		}
		r.folded[i] = names
	}

	zap.L().Debug("resolve: resolver ready",
		zap.Int("schools", len(r.schools)),
		zap.Int("abbreviations", len(r.abbrev)),
		zap.Bool("abbreviations_first", opts.AbbreviationsFirst),
	)
	return r, nil
}

// LoadAbbreviations parses a YAML map of abbreviation to canonical name.
func LoadAbbreviations(data []byte) (map[string]string, error) {
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "resolve: parse abbreviations")
	}
	return m, nil
}

// fold must be called with mu held or before the resolver is shared.
func (r *Resolver) fold(s string) string {
	return r.caser.String(strings.Join(strings.Fields(s), " "))
}

// Resolve returns the canonical school for name. A miss is recorded and
// cached; it is not an error.
func (r *Resolver) Resolve(name string) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.fold(name)
	if key == "" {
		return Match{}, false
	}

	if e, ok := r.cache[key]; ok {
		if !e.found {
			r.recordMiss(key, name)
			return Match{}, false
		}
		return Match{School: e.school, Step: StepCache}, true
	}

	steps := []struct {
		step Step
		find func(string) (int, bool)
	}{
		{StepExact, r.findExact},
		{StepAbbreviation, r.findAbbreviation},
		{StepSubstring, r.findSubstring},
	}
	if !r.opts.AbbreviationsFirst {
		steps[1], steps[2] = steps[2], steps[1]
	}

	for _, s := range steps {
		if i, ok := s.find(key); ok {
			school := r.schools[i]
			r.cache[key] = cacheEntry{school: school, found: true}
			return Match{School: school, Step: s.step}, true
		}
	}

	r.cache[key] = cacheEntry{}
	r.recordMiss(key, name)
	return Match{}, false
}

func (r *Resolver) recordMiss(key, name string) {
	m, ok := r.misses[key]
	if !ok {
		m = &missEntry{name: strings.TrimSpace(name)}
		r.misses[key] = m
	}
	m.count++
}

func (r *Resolver) findExact(key string) (int, bool) {
	i, ok := r.exact[key]
	return i, ok
}

// findAbbreviation maps key through the abbreviation table, then looks up
// the full name exactly or, failing that, takes the lowest-ID school whose
// name contains it.
func (r *Resolver) findAbbreviation(key string) (int, bool) {
	full, ok := r.abbrev[key]
	if !ok {
		return 0, false
	}
	fullKey := r.fold(full)
	if i, ok := r.exact[fullKey]; ok {
		return i, true
	}
	for i, names := range r.folded {
		if len(names) > 0 && strings.Contains(names[0], fullKey) {
			return i, true
		}
	}
	return 0, false
}

// findSubstring resolves key when exactly one school's name or alias
// contains it. Two or more candidates are ambiguous.
func (r *Resolver) findSubstring(key string) (int, bool) {
	hit := -1
	for i, names := range r.folded {
		for _, n := range names {
			if strings.Contains(n, key) {
				if hit >= 0 && hit != i {
					return 0, false
				}
				hit = i
				break
			}
		}
	}
	return hit, hit >= 0
}

// TopUnresolved returns up to n misses ordered by count descending, then name.
// n <= 0 returns all of them.
func (r *Resolver) TopUnresolved(n int) []Unresolved {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Unresolved, 0, len(r.misses))
	for _, m := range r.misses {
		out = append(out, Unresolved{Name: m.name, Count: m.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Schools returns the number of canonical schools loaded.
func (r *Resolver) Schools() int { return len(r.schools) }
