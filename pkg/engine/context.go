package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nself-org/flowcore/pkg/condition"
	"github.com/nself-org/flowcore/pkg/models"
)

// mergedContext flattens a run context into one lookup map. Precedence on
// key collision: stepOutputs > variables > triggerData. The full inputs map
// sits under the "inputs" key rather than being merged in. Condition and
// template evaluation depend on this exact precedence.
func mergedContext(rc *models.RunContext) map[string]interface{} {
	m := make(map[string]interface{}, len(rc.TriggerData)+len(rc.Variables)+len(rc.StepOutputs)+1)
	for k, v := range rc.TriggerData {
		m[k] = v
	}
	for k, v := range rc.Variables {
		m[k] = v
	}
	for k, v := range rc.StepOutputs {
		m[k] = v
	}
	m["inputs"] = rc.Inputs
	return m
}

var templatePattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

func isTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// interpolate replaces every {{path}} placeholder with the dot-path lookup
// result from ctx. Unresolvable placeholders are left as-is.
func interpolate(tmpl string, ctx map[string]interface{}) string {
	return templatePattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := templatePattern.FindStringSubmatch(match)[1]
		val, ok := condition.Lookup(ctx, path)
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}

// resolveInputMapping projects context paths into a named input map for a
// step's record snapshot.
func resolveInputMapping(mapping map[string]string, ctx map[string]interface{}) map[string]interface{} {
	if len(mapping) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(mapping))
	for path, name := range mapping {
		if val, ok := condition.Lookup(ctx, path); ok {
			out[name] = val
		}
	}
	return out
}
