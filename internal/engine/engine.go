package engine

import (
	"time"

	"finmentor/internal/domain"
)

// Version identifies the evaluation semantics baked into this build.
// Bump it when rule resolution or scoring behavior changes.
const Version = "1.0.0"

// engineMode names the evaluation strategy recorded in report metadata.
const engineMode = "declarative"

// Engine runs the full evaluation pipeline: normalize a raw snapshot,
// evaluate the rule registry against it, aggregate risks, and attach
// recommendations and an action plan. An Engine is immutable after New
// and safe for concurrent use.
type Engine struct {
	cfg      Config
	registry *Registry
	eval     *Evaluator
	now      func() time.Time
}

func New(cfg Config, registry *Registry) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		eval:     NewEvaluator(registry, cfg),
		now:      time.Now,
	}
}

// Registry exposes the rule set this engine evaluates.
func (e *Engine) Registry() *Registry { return e.registry }

// Config exposes the constants table this engine evaluates with.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate produces a complete report for one monthly snapshot. It
// returns a *domain.ValidationError when the payload is missing
// required fields; any other error indicates an engine defect.
func (e *Engine) Evaluate(raw map[string]any) (*domain.Report, error) {
	in, trace, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	triggers := e.eval.EvaluateAll(in)
	fired := make([]domain.RuleTrigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Triggered {
			fired = append(fired, t)
		}
	}

	risks := BuildRisks(triggers)
	recs := BuildRecommendations(e.cfg, in, risks, triggers)
	plan := BuildActionPlan(recs)

	return &domain.Report{
		Metadata: domain.Metadata{
			UserID:        in.UserID,
			Month:         in.Month,
			Persona:       in.Persona,
			Currency:      e.cfg.Currency,
			GeneratedAt:   e.now().UTC().Format(time.RFC3339),
			EngineVersion: Version,
			EngineMode:    engineMode,
			Confidence:    in.ConfidenceScore,
		},
		Risks:           risks,
		RuleTriggers:    fired,
		Recommendations: recs,
		ActionPlan:      plan,
		Alerts:          []string{},
		Audit: domain.Audit{
			InputFields: trace.InputFields,
			Normalization: domain.AuditNormalization{
				UsedAliases: trace.UsedAliases,
			},
			RulesEvaluated: len(triggers),
			RulesTriggered: len(fired),
		},
	}, nil
}
