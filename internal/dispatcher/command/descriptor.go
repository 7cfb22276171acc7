package command

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/slashcore/internal/dispatcher/handler"
)

// Descriptor declares a command to register. Only Name and Handler are
// required.
type Descriptor struct {
	Name        string
	Handler     handler.Handler
	Description string
	Category    string
	Aliases     []string
	Permissions []string
	Middleware  []Middleware
	Parameters  []Parameter
	Examples    []string
	Hidden      bool
	Deprecated  bool
	Version     string
	Author      string
	Tags        []string
	Plugin      string
}

// Validate checks the descriptor without normalizing it.
func (d Descriptor) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "name", Reason: "must not contain whitespace"}
	}
	if d.Handler == nil {
		return &ValidationError{Field: "handler", Reason: "must not be nil"}
	}
	if f, ok := d.Handler.(handler.Func); ok && f == nil {
		return &ValidationError{Field: "handler", Reason: "must not be nil"}
	}
	for _, alias := range d.Aliases {
		if strings.IndexFunc(strings.TrimSpace(alias), unicode.IsSpace) >= 0 {
			return &ValidationError{Field: "aliases", Reason: "alias " + alias + " contains whitespace"}
		}
	}
	for i, mw := range d.Middleware {
		if mw == nil {
			return &ValidationError{Field: "middleware", Reason: "entry " + strconv.Itoa(i) + " is nil"}
		}
	}
	return nil
}

// Normalize folds a name or alias to its registry key.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// build turns a validated descriptor into a command.
func (d Descriptor) build() *Command {
	name := Normalize(d.Name)
	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = DefaultCategory
	}
	return &Command{
		Name:         name,
		OriginalName: strings.TrimSpace(d.Name),
		Handler:      d.Handler,
		Description:  d.Description,
		Category:     category,
		Aliases:      normalizeAliases(name, d.Aliases),
		Permissions:  dedupe(d.Permissions),
		Middleware:   append([]Middleware(nil), d.Middleware...),
		Parameters:   append([]Parameter(nil), d.Parameters...),
		Examples:     append([]string(nil), d.Examples...),
		Hidden:       d.Hidden,
		Deprecated:   d.Deprecated,
		Version:      d.Version,
		Author:       d.Author,
		Tags:         append([]string(nil), d.Tags...),
		Plugin:       d.Plugin,
	}
}

func normalizeAliases(name string, aliases []string) []string {
	var out []string
	seen := map[string]bool{name: true}
	for _, a := range aliases {
		a = Normalize(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func dedupe(items []string) []string {
	var out []string
	seen := make(map[string]bool, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
