// Package tplx renders the short {{ handle }} templates used for entry
// titles and routes.
package tplx

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/flosch/pongo2/v6"
)

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	mu       sync.RWMutex
	compiled = map[string]*pongo2.Template{}
)

// Render executes src against vars without HTML escaping. Only scalar
// values are exposed; anything else, like a missing key, renders empty.
func Render(src string, vars map[string]any) (string, error) {
	tpl, err := compile(src)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(scalars(vars))
	if err != nil {
		return "", fmt.Errorf("execute template %q: %w", src, err)
	}
	return out, nil
}

func compile(src string) (*pongo2.Template, error) {
	mu.RLock()
	tpl, ok := compiled[src]
	mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", src, err)
	}

	mu.Lock()
	compiled[src] = tpl
	mu.Unlock()
	return tpl, nil
}

// scalars drops keys pongo2 cannot address and values with no plain text
// form. Numbers and bools are passed as their fmt rendering.
func scalars(vars map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(vars))
	for k, v := range vars {
		if !identifier.MatchString(k) {
			continue
		}
		switch t := v.(type) {
		case string:
			ctx[k] = t
		case int, int64, float64, bool:
			ctx[k] = fmt.Sprint(t)
		}
	}
	return ctx
}
