package script

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/stats"
	"github.com/studiowebux/frontloader/internal/transport"
)

// Scenario is a declarative script: an ordered list of steps run once per iteration.
type Scenario struct {
	Name string `yaml:"name"`
	// AbortOnFailure ends the iteration at the first failed status or timeout.
	AbortOnFailure bool   `yaml:"abort_on_failure"`
	Steps          []Step `yaml:"steps"`
}

// Step is one call, or one debug note when Debug is set.
//
// Target, Params, Headers, Body and Debug may reference ${worker}, the
// 1-based id of the simulated user, and any variable captured by an earlier
// step of the same iteration. Capture maps a variable name to a JMESPath
// expression evaluated against the JSON body of a successful response.
type Step struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	Target  string            `yaml:"target"`
	Params  map[string]string `yaml:"params"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Think   time.Duration     `yaml:"think"`
	Debug   string            `yaml:"debug"`
	Capture map[string]string `yaml:"capture"`

	captures []capture
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
	http.MethodHead:   true,
}

// LoadScenario reads a YAML or JSON scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario. JSON is accepted as YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate normalizes methods and call names and rejects incomplete steps.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps")
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Debug != "" && step.Target == "" {
			continue
		}
		if step.Target == "" {
			return fmt.Errorf("step %d: target is required", i+1)
		}

		step.Method = strings.ToUpper(strings.TrimSpace(step.Method))
		if step.Method == "" {
			step.Method = http.MethodGet
		}
		if !allowedMethods[step.Method] {
			return fmt.Errorf("step %d: unsupported method %q", i+1, step.Method)
		}
		if step.Think < 0 {
			return fmt.Errorf("step %d: think time must not be negative", i+1)
		}
		if step.Name == "" {
			step.Name = step.Method + " " + step.Target
		}

		captures, err := compileCaptures(step.Capture)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		step.captures = captures
	}
	return nil
}

// Script returns the procedure that walks the steps in order.
func (s *Scenario) Script() experiment.Script {
	return func(ctx context.Context, session *experiment.Session) error {
		vars := variables{"worker": strconv.Itoa(session.Worker())}

		for _, step := range s.Steps {
			if step.Debug != "" {
				session.Debug(vars.expand(step.Debug))
			}
			if step.Target == "" {
				continue
			}

			resp, err := session.Do(step.Name, &transport.Request{
				Method:  step.Method,
				Target:  vars.expand(step.Target),
				Params:  vars.expandMap(step.Params),
				Headers: vars.expandMap(step.Headers),
				Body:    vars.expand(step.Body),
			})
			if err != nil {
				if errors.Is(err, experiment.ErrTimeout) && !s.AbortOnFailure {
					continue
				}
				return err
			}
			if !stats.IsSuccessStatus(resp.Status) {
				if s.AbortOnFailure {
					return nil
				}
			} else if !s.captureAll(session, step, resp.Body, vars) && s.AbortOnFailure {
				return nil
			}

			if step.Think > 0 {
				select {
				case <-time.After(step.Think):
				case <-ctx.Done():
					return nil
				}
			}
		}
		return nil
	}
}

// captureAll stores every capture of step into vars. Failed captures go to
// the debug log and leave the variable unchanged; it reports whether all matched.
func (s *Scenario) captureAll(session *experiment.Session, step Step, body []byte, vars variables) bool {
	ok := true
	for _, c := range step.captures {
		value, err := extract(body, c.expr)
		if err != nil {
			session.Debug(fmt.Sprintf("%s: capture %s: %v", step.Name, c.name, err))
			ok = false
			continue
		}
		vars[c.name] = value
	}
	return ok
}

// Close is a no-op; scenarios hold no resources.
func (s *Scenario) Close() error {
	return nil
}
