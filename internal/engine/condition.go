package engine

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Condition is one node of a rule's condition tree. Type selects the
// variant; the remaining fields are populated per variant:
//
//	comparison   left, operator, right
//	logical_and  conditions
//	logical_or   conditions
//	is_null      field
//	field_exists field
//	regex_match  field, pattern, extract, optional threshold
type Condition struct {
	Type       string          `json:"type"`
	Left       any             `json:"left,omitempty"`
	Operator   string          `json:"operator,omitempty"`
	Right      any             `json:"right,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Field      string          `json:"field,omitempty"`
	Pattern    string          `json:"pattern,omitempty"`
	Extract    []string        `json:"extract,omitempty"`
	Threshold  *ThresholdCheck `json:"threshold,omitempty"`
}

// ThresholdCheck gates a regex_match on one extracted capture.
type ThresholdCheck struct {
	Field    string  `json:"field"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

var comparisonOps = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true,
}

// evalCondition evaluates a condition tree against the context. The
// returned map carries regex captures for severity and parameter
// resolution. A non-nil error marks a hard failure the caller records
// as a failed rule; soft resolution misses simply evaluate false.
func evalCondition(cond Condition, ctx map[string]any) (bool, map[string]string, error) {
	switch cond.Type {
	case "":
		log.Printf("condition missing type field")
		return false, nil, nil

	case "comparison":
		left := resolveExpr(cond.Left, ctx, nil)
		right := resolveExpr(cond.Right, ctx, nil)
		if left == nil || right == nil {
			return false, nil, nil
		}
		return compareValues(left, cond.Operator, right), nil, nil

	case "logical_and":
		extracted := map[string]string{}
		for _, sub := range cond.Conditions {
			ok, subExtracted, err := evalCondition(sub, ctx)
			if err != nil {
				return false, nil, err
			}
			for k, v := range subExtracted {
				extracted[k] = v
			}
			if !ok {
				return false, nil, nil
			}
		}
		return true, extracted, nil

	case "logical_or":
		for _, sub := range cond.Conditions {
			ok, subExtracted, err := evalCondition(sub, ctx)
			if err != nil {
				return false, nil, err
			}
			if ok {
				return true, subExtracted, nil
			}
		}
		return false, nil, nil

	case "is_null":
		return resolveExpr(cond.Field, ctx, nil) == nil, nil, nil

	case "field_exists":
		return resolveExpr(cond.Field, ctx, nil) != nil, nil, nil

	case "regex_match":
		return evalRegexMatch(cond, ctx)
	}

	return false, nil, nil
}

func evalRegexMatch(cond Condition, ctx map[string]any) (bool, map[string]string, error) {
	value := resolveExpr(cond.Field, ctx, nil)
	if value == nil {
		return false, nil, nil
	}
	text, ok := value.(string)
	if !ok {
		text = fmt.Sprint(value)
	}
	if text == "" {
		return false, nil, nil
	}

	re, err := regexp.Compile("(?i)" + cond.Pattern)
	if err != nil {
		return false, nil, fmt.Errorf("compile pattern %q: %w", cond.Pattern, err)
	}
	match := re.FindStringSubmatch(text)
	if match == nil {
		return false, nil, nil
	}

	extracted := map[string]string{}
	for i, name := range cond.Extract {
		if i+1 < len(match) {
			extracted[name] = strings.TrimSpace(match[i+1])
		}
	}

	if thr := cond.Threshold; thr != nil {
		raw, ok := extracted[thr.Field]
		if !ok {
			return false, extracted, nil
		}
		fieldVal, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false, extracted, nil
		}
		if !compareOrdered(fieldVal, thr.Operator, thr.Value) {
			return false, extracted, nil
		}
	}
	return true, extracted, nil
}

// validate rejects malformed condition trees at registry load time so
// evaluation never sees an unknown variant.
func (c Condition) validate() error {
	switch c.Type {
	case "comparison":
		if !comparisonOps[c.Operator] {
			return fmt.Errorf("comparison: unknown operator %q", c.Operator)
		}
		if c.Left == nil || c.Right == nil {
			return fmt.Errorf("comparison: left and right are required")
		}
	case "logical_and", "logical_or":
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s: at least one sub-condition is required", c.Type)
		}
		for i, sub := range c.Conditions {
			if err := sub.validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.Type, i, err)
			}
		}
	case "is_null", "field_exists":
		if c.Field == "" {
			return fmt.Errorf("%s: field is required", c.Type)
		}
	case "regex_match":
		if c.Field == "" || c.Pattern == "" {
			return fmt.Errorf("regex_match: field and pattern are required")
		}
		if _, err := regexp.Compile("(?i)" + c.Pattern); err != nil {
			return fmt.Errorf("regex_match: %w", err)
		}
		if c.Threshold != nil && !comparisonOps[c.Threshold.Operator] {
			return fmt.Errorf("regex_match threshold: unknown operator %q", c.Threshold.Operator)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}
