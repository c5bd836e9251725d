package script

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// capture is one compiled variable extraction of a step.
type capture struct {
	name string
	expr *jmespath.JMESPath
}

// compileCaptures compiles a step's capture map in name order.
func compileCaptures(exprs map[string]string) ([]capture, error) {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	captures := make([]capture, 0, len(names))
	for _, name := range names {
		if name == "" || name == "worker" {
			return nil, fmt.Errorf("invalid capture variable %q", name)
		}
		jp, err := jmespath.Compile(exprs[name])
		if err != nil {
			return nil, fmt.Errorf("invalid JMESPath expression '%s' for %s: %w", exprs[name], name, err)
		}
		captures = append(captures, capture{name: name, expr: jp})
	}
	return captures, nil
}

// extract applies expr to a JSON body. Strings are returned unquoted, any
// other match as compact JSON. A null match is an error.
func extract(body []byte, expr *jmespath.JMESPath) (string, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	result, err := expr.Search(data)
	if err != nil {
		return "", fmt.Errorf("JMESPath search failed: %w", err)
	}

	switch v := result.(type) {
	case nil:
		return "", fmt.Errorf("no match")
	case string:
		return v, nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(out), nil
	}
}

// variables holds the ${name} substitutions of one iteration.
type variables map[string]string

func (v variables) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	pairs := make([]string, 0, 2*len(v))
	for name, value := range v {
		pairs = append(pairs, "${"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func (v variables) expandMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = v.expand(val)
	}
	return out
}
