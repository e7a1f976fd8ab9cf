package engine

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"finmentor/internal/domain"
)

// Evaluator runs registry rules against normalized monthly snapshots.
type Evaluator struct {
	registry *Registry
	cfg      Config
}

func NewEvaluator(registry *Registry, cfg Config) *Evaluator {
	return &Evaluator{registry: registry, cfg: cfg}
}

// EvaluateAll evaluates every enabled rule and returns one trigger per
// rule in evaluation order (ascending priority, ties broken by id).
// The lookup context is assembled once for the whole run. A rule that
// fails to evaluate contributes a non-triggered result carrying the
// error; it never aborts the run. At most one triggered result is kept
// per rule id.
func (e *Evaluator) EvaluateAll(in *domain.NormalizedInput) []domain.RuleTrigger {
	ctx := BuildContext(in, e.cfg)
	rules := e.registry.EnabledRules()
	triggers := make([]domain.RuleTrigger, 0, len(rules))
	triggeredIDs := make(map[string]bool)

	for _, rule := range rules {
		trigger, err := evaluateRule(rule, ctx)
		if err != nil {
			log.Printf("rule %s: evaluation failed: %v", rule.ID, err)
			triggers = append(triggers, failedTrigger(rule, err))
			continue
		}
		if trigger.Triggered && triggeredIDs[trigger.RuleID] {
			log.Printf("rule %s: duplicate trigger skipped", trigger.RuleID)
			continue
		}
		if trigger.Triggered {
			triggeredIDs[trigger.RuleID] = true
		}
		triggers = append(triggers, trigger)
	}
	return triggers
}

// Rules exposes the evaluator's registry for presentation layers.
func (e *Evaluator) Rules() *Registry {
	return e.registry
}

func evaluateRule(rule RuleDefinition, ctx map[string]any) (trigger domain.RuleTrigger, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ok, extracted, err := evalCondition(rule.Condition, ctx)
	if err != nil {
		return domain.RuleTrigger{}, err
	}
	if !ok {
		return domain.RuleTrigger{
			RuleID:    rule.ID,
			Triggered: false,
			Weight:    rule.Weight,
			Params:    map[string]any{},
		}, nil
	}

	severity := severityFor(rule.Severity, ctx, extracted)
	params := evalParams(rule.Params, ctx, extracted)
	return domain.RuleTrigger{
		RuleID:    rule.ID,
		Triggered: true,
		Severity:  severity,
		Weight:    rule.Weight,
		Params:    params,
		Reason:    formatMessage(rule.MessageTemplate, params, extracted),
		DataRefs:  rule.DataRefs,
	}, nil
}

func failedTrigger(rule RuleDefinition, err error) domain.RuleTrigger {
	msg := err.Error()
	reason := msg
	if len(reason) > 100 {
		reason = reason[:100]
	}
	return domain.RuleTrigger{
		RuleID:    rule.ID,
		Triggered: false,
		Severity:  domain.SeverityLow,
		Weight:    rule.Weight,
		Params:    map[string]any{"error": msg},
		Reason:    "Rule evaluation failed: " + reason,
	}
}

// severityFor resolves a trigger's severity per its policy. A metric
// that fails to resolve defaults to low; an unknown policy type
// defaults to medium.
func severityFor(policy SeverityPolicy, ctx map[string]any, extracted map[string]string) domain.Severity {
	switch policy.Type {
	case "fixed":
		if policy.Value == "" {
			return domain.SeverityMedium
		}
		return policy.Value

	case "banded":
		metric, ok := toFloat(resolveExpr(policy.Metric, ctx, extracted))
		if !ok {
			log.Printf("banded severity: metric %q did not resolve, defaulting to low", policy.Metric)
			return domain.SeverityLow
		}
		for _, band := range policy.Bands {
			if band.Threshold == nil || metric < *band.Threshold {
				return band.Severity
			}
		}
		if n := len(policy.Bands); n > 0 {
			return policy.Bands[n-1].Severity
		}
		return domain.SeverityLow

	case "threshold":
		metric, ok := toFloat(resolveExpr(policy.Metric, ctx, extracted))
		if !ok {
			log.Printf("threshold severity: metric %q did not resolve, defaulting to low", policy.Metric)
			return domain.SeverityLow
		}
		for _, rule := range policy.Rules {
			if evalThresholdCondition(metric, rule.Condition) {
				return rule.Severity
			}
		}
		return domain.SeverityLow
	}

	log.Printf("unknown severity policy type %q, defaulting to medium", policy.Type)
	return domain.SeverityMedium
}

// evalParams resolves the rule's named output expressions. Parameters
// that fail to resolve are dropped rather than emitted as nulls.
func evalParams(exprs map[string]any, ctx map[string]any, extracted map[string]string) map[string]any {
	params := make(map[string]any, len(exprs))
	for key, expr := range exprs {
		if value := resolveExpr(expr, ctx, extracted); value != nil {
			params[key] = value
		}
	}
	return params
}

// formatMessage substitutes {key} and {key_pct} placeholders from the
// merged parameter and capture maps. Captures win on key collisions,
// and unknown placeholders are left in place so a template typo
// degrades to visible text instead of an error.
func formatMessage(template string, params map[string]any, extracted map[string]string) string {
	merged := make(map[string]any, len(params)+len(extracted))
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range extracted {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	message := template
	for _, key := range keys {
		value := merged[key]
		if placeholder := "{" + key + "}"; strings.Contains(message, placeholder) {
			message = strings.ReplaceAll(message, placeholder, formatValue(value))
		}
		pctPlaceholder := "{" + key + "_pct}"
		if !strings.Contains(message, pctPlaceholder) {
			continue
		}
		if f, ok := toFloat(value); ok {
			message = strings.ReplaceAll(message, pctPlaceholder, strconv.Itoa(int(f*100)))
		}
	}
	return message
}

// formatValue renders a resolved value for message text. Floats are
// rounded to four decimal places and printed without trailing zeros.
func formatValue(v any) string {
	switch t := v.(type) {
	case float64:
		rounded := math.Round(t*10000) / 10000
		return strconv.FormatFloat(rounded, 'f', -1, 64)
	case string:
		return t
	}
	return fmt.Sprint(v)
}
