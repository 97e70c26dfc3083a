package postgrest

import (
	_ "embed"
	"slices"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

//go:embed dependencies.yaml
var dependenciesYAML []byte

// Dependencies maps a writable table to every table or view whose cached
// reads a write to it can make stale. It is static configuration.
type Dependencies struct {
	closure map[string][]string
}

// LoadDependencies parses the embedded dependency map.
func LoadDependencies() (Dependencies, error) {
	return ParseDependencies(dependenciesYAML)
}

// ParseDependencies parses a YAML mapping of table -> [dependents] and
// resolves it transitively, so writing to characters also invalidates
// v_character_spells through character_spells.
func ParseDependencies(data []byte) (Dependencies, error) {
	var direct map[string][]string
	if err := yaml.Unmarshal(data, &direct); err != nil {
		return Dependencies{}, zerr.Wrap(err, "parse dependency map")
	}
	closure := make(map[string][]string, len(direct))
	for table := range direct {
		seen := map[string]struct{}{table: {}}
		queue := append([]string(nil), direct[table]...)
		var deps []string
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			deps = append(deps, next)
			queue = append(queue, direct[next]...)
		}
		slices.Sort(deps)
		closure[table] = deps
	}
	return Dependencies{closure: closure}, nil
}

// For returns the dependents of table in sorted order, excluding table itself.
func (d Dependencies) For(table string) []string {
	return slices.Clone(d.closure[table])
}

// Tables returns every base table with an entry in the map.
func (d Dependencies) Tables() []string {
	out := make([]string, 0, len(d.closure))
	for t := range d.closure {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Covers reports whether some write target lists view as a dependent.
func (d Dependencies) Covers(view string) bool {
	for _, deps := range d.closure {
		if slices.Contains(deps, view) {
			return true
		}
	}
	return false
}
