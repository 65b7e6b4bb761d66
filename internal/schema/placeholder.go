package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StepMap maps batch step numbers to the real document ids their create
// actions produced.
type StepMap map[int]string

// MaxStep returns the highest step number present in the map, or 0.
func (m StepMap) MaxStep() int {
	max := 0
	for step := range m {
		if step > max {
			max = step
		}
	}
	return max
}

var placeholderPattern = regexp.MustCompile(`^\{step_(\d+)_id\}$`)

// UnresolvedReferenceError reports a placeholder whose step has not produced
// an id yet. Callers treat it as "not yet resolvable, retry later".
type UnresolvedReferenceError struct {
	Step int
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("placeholder {step_%d_id} could not be resolved: step %d id not found in step map", e.Step, e.Step)
}

// Resolve recursively rewrites every string of the exact shape {step_N_id}
// to the id recorded for step N, descending into maps and slices and leaving
// every other value untouched. Resolution is idempotent.
func Resolve(value any, steps StepMap) (any, error) {
	switch v := value.(type) {
	case string:
		m := placeholderPattern.FindStringSubmatch(v)
		if m == nil {
			return v, nil
		}
		step, err := strconv.Atoi(m[1])
		if err != nil {
			return v, nil
		}
		id, ok := steps[step]
		if !ok {
			return nil, &UnresolvedReferenceError{Step: step}
		}
		return id, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := Resolve(item, steps)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := Resolve(item, steps)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveSchema applies Resolve across a schema's serialized form and
// reports whether anything changed.
func ResolveSchema(s FormSchema, steps StepMap) (FormSchema, bool, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return s, false, fmt.Errorf("marshal schema: %w", err)
	}
	if !containsPlaceholderText(string(raw)) {
		return s, false, nil
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return s, false, fmt.Errorf("decode schema: %w", err)
	}
	resolvedTree, err := Resolve(tree, steps)
	if err != nil {
		return s, false, err
	}
	resolvedRaw, err := json.Marshal(resolvedTree)
	if err != nil {
		return s, false, fmt.Errorf("marshal resolved schema: %w", err)
	}
	if string(resolvedRaw) == string(raw) {
		return s, false, nil
	}
	var out FormSchema
	if err := json.Unmarshal(resolvedRaw, &out); err != nil {
		return s, false, fmt.Errorf("decode resolved schema: %w", err)
	}
	return out, true, nil
}

// HasUnresolved reports whether a schema still carries placeholder tokens
// that resolution against steps would rewrite or fail on.
func HasUnresolved(s FormSchema, steps StepMap) bool {
	raw, err := json.Marshal(s)
	if err != nil {
		return false
	}
	if !containsPlaceholderText(string(raw)) {
		return false
	}
	_, changed, err := ResolveSchema(s, steps)
	return err != nil || changed
}

func containsPlaceholderText(s string) bool {
	return strings.Contains(s, "{step_") && strings.Contains(s, "_id}")
}
