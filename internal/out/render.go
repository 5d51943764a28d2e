// Package out writes envelopes as indented JSON or as greppable key=value lines.
package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ggonzalez94/aztec-cli/internal/config"
	"github.com/ggonzalez94/aztec-cli/internal/model"
)

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(generic(data), settings.SelectFields)
	}

	if settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if settings.ResultsOnly {
			return enc.Encode(data)
		}
		env.Data = data
		return enc.Encode(env)
	}

	plain := generic(data)
	if plain != nil || env.Error == nil {
		if err := writeLines(w, "", plain); err != nil {
			return err
		}
	}
	if settings.ResultsOnly {
		return nil
	}
	if env.Error != nil {
		if _, err := fmt.Fprintf(w, "error: [%s] %s\n", env.Error.Type, env.Error.Message); err != nil {
			return err
		}
	}
	for _, warning := range env.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	meta := generic(env.Meta)
	return writeLines(w, "meta.", meta)
}

// writeLines prints one line per list item, or a single line for an object.
func writeLines(w io.Writer, prefix string, data any) error {
	switch t := data.(type) {
	case nil:
		if prefix != "" {
			return nil
		}
		_, err := fmt.Fprintln(w, "null")
		return err
	case []any:
		if len(t) == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		for _, item := range t {
			if _, err := fmt.Fprintln(w, line(prefix, item)); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, line(prefix, t))
		return err
	}
}

// project keeps only the selected fields. A dotted field such as "fee.amount_decimal"
// reaches into nested objects and keeps the nesting in the output.
func project(data any, fields []string) any {
	switch t := data.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, projectMap(m, fields))
			}
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return t
	}
}

func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		path := strings.Split(strings.TrimSpace(f), ".")
		v, ok := lookup(m, path)
		if !ok {
			continue
		}
		assign(out, path, v)
	}
	return out
}

func lookup(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(m map[string]any, path []string, v any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// generic converts typed values into the map/slice form JSON would produce.
func generic(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

// line renders one item as sorted key=value pairs. Nested objects flatten into
// dotted keys so amounts stay greppable.
func line(prefix string, v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		buf, _ := json.Marshal(v)
		return string(buf)
	}
	flat := map[string]string{}
	flatten(strings.TrimSuffix(prefix, "."), m, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+flat[k])
	}
	return strings.Join(parts, " ")
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case []any, nil:
			buf, _ := json.Marshal(t)
			out[key] = string(buf)
		case string:
			if strings.ContainsAny(t, " \t") {
				out[key] = fmt.Sprintf("%q", t)
			} else {
				out[key] = t
			}
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}
