package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/store"
)

// ActionHandler executes one action kind against the triggering context.
// Handlers are registered by the caller (cmd/vibarrd's wiring) rather than
// imported here, so this package never depends on internal/pipeline,
// internal/integrations, or internal/fanout — it only knows how to decide,
// not how to act.
type ActionHandler func(ctx context.Context, action Action, ruleCtx Context) error

// Engine evaluates persisted automation rules against trigger contexts and
// dispatches their actions through registered handlers.
type Engine struct {
	store    *store.Store
	log      zerolog.Logger
	handlers map[ActionKind]ActionHandler
}

func NewEngine(s *store.Store, log zerolog.Logger) *Engine {
	return &Engine{
		store:    s,
		log:      log.With().Str("component", "rules").Logger(),
		handlers: make(map[ActionKind]ActionHandler),
	}
}

// Register binds a handler for the given action kind. Registering the same
// kind twice overwrites the previous handler.
func (e *Engine) Register(kind ActionKind, h ActionHandler) {
	e.handlers[kind] = h
}

// actionTrace records one executed action for the persisted execution log.
type actionTrace struct {
	Kind    ActionKind `json:"kind"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// Fire loads every enabled rule for trigger, evaluates each in priority
// order, and runs the actions of every rule whose conditions match. Every
// matching rule runs independently — there is no short-circuit across
// rules (spec §4.G); a skip_item action only halts the remaining actions
// within the rule that contains it (see runActions).
func (e *Engine) Fire(ctx context.Context, trigger Trigger, ruleCtx Context) error {
	dbRules, err := e.store.EnabledRulesForTrigger(ctx, string(trigger))
	if err != nil {
		return fmt.Errorf("loading rules for trigger %s: %w", trigger, err)
	}

	for _, dbRule := range dbRules {
		rule, err := parseRule(dbRule)
		if err != nil {
			e.log.Warn().Err(err).Uint("rule_id", dbRule.ID).Msg("skipping malformed rule")
			continue
		}
		if err := Validate(rule); err != nil {
			e.log.Warn().Err(err).Uint("rule_id", dbRule.ID).Msg("skipping invalid rule")
			continue
		}

		if !Evaluate(rule.Conditions, ruleCtx) {
			continue
		}

		_, execErr := e.runActions(ctx, rule, ruleCtx)
		if recErr := e.store.RecordRuleFired(ctx, dbRule.ID); recErr != nil {
			e.log.Warn().Err(recErr).Uint("rule_id", dbRule.ID).Msg("failed to record rule firing")
		}
		if execErr != nil {
			e.log.Warn().Err(execErr).Uint("rule_id", dbRule.ID).Msg("rule action failed")
		}
	}
	return nil
}

func (e *Engine) runActions(ctx context.Context, rule *Rule, ruleCtx Context) (halted bool, err error) {
	trace := make([]actionTrace, 0, len(rule.Actions))
	success := true
	var firstErr error

	for _, action := range rule.Actions {
		if action.Kind == ActionSkipItem {
			trace = append(trace, actionTrace{Kind: action.Kind, Success: true})
			halted = true
			break
		}

		handler, ok := e.handlers[action.Kind]
		if !ok {
			trace = append(trace, actionTrace{Kind: action.Kind, Success: false, Error: "no handler registered"})
			success = false
			continue
		}
		if hErr := handler(ctx, action, ruleCtx); hErr != nil {
			trace = append(trace, actionTrace{Kind: action.Kind, Success: false, Error: hErr.Error()})
			success = false
			if firstErr == nil {
				firstErr = hErr
			}
			continue
		}
		trace = append(trace, actionTrace{Kind: action.Kind, Success: true})
	}

	traceJSON, _ := json.Marshal(trace)
	ctxJSON, _ := json.Marshal(ruleCtx)
	logErr := ""
	if firstErr != nil {
		logErr = firstErr.Error()
	}
	if err := e.store.AppendRuleExecutionLog(ctx, &store.RuleExecutionLog{
		RuleID:    rule.ID,
		Success:   success,
		Context:   store.JSONRaw(ctxJSON),
		ActionLog: store.JSONRaw(traceJSON),
		Error:     logErr,
	}); err != nil {
		e.log.Warn().Err(err).Uint("rule_id", rule.ID).Msg("failed to append execution log")
	}

	return halted, firstErr
}

func parseRule(r store.AutomationRule) (*Rule, error) {
	var conditions []Condition
	if len(r.Conditions) > 0 {
		if err := json.Unmarshal(r.Conditions, &conditions); err != nil {
			return nil, fmt.Errorf("unmarshaling conditions: %w", err)
		}
	}
	var actions []Action
	if err := json.Unmarshal(r.Actions, &actions); err != nil {
		return nil, fmt.Errorf("unmarshaling actions: %w", err)
	}
	return &Rule{
		ID:         r.ID,
		Name:       r.Name,
		Trigger:    Trigger(r.Trigger),
		Conditions: conditions,
		Actions:    actions,
		Priority:   r.Priority,
		Enabled:    r.Enabled,
	}, nil
}
