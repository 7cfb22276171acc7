package command

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Complete returns completion candidates for a partially typed command
// token, best match first. Names and aliases of non-hidden commands are
// candidates; an empty query lists every visible name alphabetically.
func (r *Registry) Complete(query string) []string {
	candidates := r.completionSource()
	query = Normalize(query)
	if query == "" {
		names := r.VisibleNames()
		sort.Strings(names)
		return names
	}

	matches := fuzzy.Find(query, candidates)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}

func (r *Registry) completionSource() []string {
	var out []string
	for _, cmd := range r.Visible() {
		out = append(out, cmd.Name)
		out = append(out, cmd.Aliases...)
	}
	return out
}
