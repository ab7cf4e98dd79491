package rules

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/store"
)

func TestEvaluateRequiresAllConditionsToMatch(t *testing.T) {
	conditions := []Condition{
		{Field: "genre", Operator: OpEquals, Value: "jazz"},
		{Field: "year", Operator: OpGreaterThan, Value: 2000.0},
	}

	assert.True(t, Evaluate(conditions, Context{"genre": "Jazz", "year": 2010.0}))
	assert.False(t, Evaluate(conditions, Context{"genre": "Jazz", "year": 1990.0}))
	assert.False(t, Evaluate(conditions, Context{"genre": "rock", "year": 2010.0}))
}

func TestEvaluateMissingFieldOnlyNegatedOperatorsPass(t *testing.T) {
	assert.True(t, Evaluate([]Condition{{Field: "missing", Operator: OpNotEquals, Value: "x"}}, Context{}))
	assert.False(t, Evaluate([]Condition{{Field: "missing", Operator: OpEquals, Value: "x"}}, Context{}))
}

func TestEvaluateContainsIsCaseInsensitive(t *testing.T) {
	cond := []Condition{{Field: "tags", Operator: OpContains, Value: "LIVE"}}
	assert.True(t, Evaluate(cond, Context{"tags": []string{"studio", "Live Album"}}))
	assert.False(t, Evaluate(cond, Context{"tags": []string{"studio"}}))
}

func TestEvaluateInListMatchesRegardlessOfCase(t *testing.T) {
	cond := []Condition{{Field: "format", Operator: OpInList, Value: []interface{}{"FLAC", "ALAC"}}}
	assert.True(t, Evaluate(cond, Context{"format": "flac"}))
	assert.False(t, Evaluate(cond, Context{"format": "mp3"}))
}

func TestEvaluateMatchesRegex(t *testing.T) {
	cond := []Condition{{Field: "title", Operator: OpMatchesRegex, Value: "(?i)deluxe"}}
	assert.True(t, Evaluate(cond, Context{"title": "Album (Deluxe Edition)"}))
	assert.False(t, Evaluate(cond, Context{"title": "Album"}))
}

func TestValidateRejectsUnknownActionKind(t *testing.T) {
	r := &Rule{
		Trigger: TriggerNewRelease,
		Actions: []Action{{Kind: ActionKind("launch_rocket")}},
	}
	assert.Error(t, Validate(r))
}

func TestValidateRequiresAtLeastOneAction(t *testing.T) {
	r := &Rule{Trigger: TriggerNewRelease, Actions: nil}
	assert.Error(t, Validate(r))
}

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), "file:"+t.Name()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	return NewEngine(s, zerolog.Nop()), s
}

func mustCreateRule(t *testing.T, s *store.Store, name string, trigger Trigger, conditions []Condition, actions []Action, priority int) uint {
	t.Helper()
	condJSON, err := json.Marshal(conditions)
	require.NoError(t, err)
	actionJSON, err := json.Marshal(actions)
	require.NoError(t, err)
	r := &store.AutomationRule{
		Name:       name,
		Trigger:    string(trigger),
		Conditions: store.JSONRaw(condJSON),
		Actions:    store.JSONRaw(actionJSON),
		Priority:   priority,
		Enabled:    true,
	}
	require.NoError(t, s.CreateAutomationRule(context.Background(), r))
	return r.ID
}

func TestEngineFireRunsMatchingRuleActionsAndRecordsLog(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	var tagged string
	engine.Register(ActionTagItem, func(ctx context.Context, action Action, ruleCtx Context) error {
		if len(action.Tags) > 0 {
			tagged = action.Tags[0]
		}
		return nil
	})

	ruleID := mustCreateRule(t, s, "tag jazz", TriggerNewRelease,
		[]Condition{{Field: "genre", Operator: OpEquals, Value: "jazz"}},
		[]Action{{Kind: ActionTagItem, Tags: []string{"jazz-pick"}}},
		10)

	require.NoError(t, engine.Fire(ctx, TriggerNewRelease, Context{"genre": "jazz"}))
	assert.Equal(t, "jazz-pick", tagged)

	history, err := s.RuleExecutionHistory(ctx, ruleID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)

	rule, err := s.GetAutomationRule(ctx, ruleID)
	require.NoError(t, err)
	assert.Equal(t, 1, rule.TriggerCount)
}

func TestEngineFireSkipsNonMatchingRule(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	called := false
	engine.Register(ActionSendNotification, func(ctx context.Context, action Action, ruleCtx Context) error {
		called = true
		return nil
	})

	mustCreateRule(t, s, "only rock", TriggerNewRelease,
		[]Condition{{Field: "genre", Operator: OpEquals, Value: "rock"}},
		[]Action{{Kind: ActionSendNotification, Message: "new rock release"}},
		10)

	require.NoError(t, engine.Fire(ctx, TriggerNewRelease, Context{"genre": "jazz"}))
	assert.False(t, called)
}

// skip_item only halts remaining actions within its own rule; it never
// short-circuits evaluation of other rules (spec §4.G, Testable Property 6).
func TestEngineFireSkipItemDoesNotHaltLowerPriorityRules(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	var fired []string
	engine.Register(ActionTagItem, func(ctx context.Context, action Action, ruleCtx Context) error {
		fired = append(fired, "low-priority")
		return nil
	})

	mustCreateRule(t, s, "high priority skip", TriggerNewRelease, nil,
		[]Action{{Kind: ActionSkipItem}}, 100)
	mustCreateRule(t, s, "low priority tag", TriggerNewRelease, nil,
		[]Action{{Kind: ActionTagItem, Tags: []string{"x"}}}, 1)

	require.NoError(t, engine.Fire(ctx, TriggerNewRelease, Context{}))
	assert.Equal(t, []string{"low-priority"}, fired)
}

// skip_item as the first action in a rule still prevents the rest of that
// same rule's actions from running.
func TestEngineFireSkipItemHaltsRemainingActionsInSameRule(t *testing.T) {
	engine, s := newTestEngine(t)
	ctx := context.Background()

	var fired []string
	engine.Register(ActionTagItem, func(ctx context.Context, action Action, ruleCtx Context) error {
		fired = append(fired, "tag")
		return nil
	})

	mustCreateRule(t, s, "skip then tag", TriggerNewRelease, nil,
		[]Action{{Kind: ActionSkipItem}, {Kind: ActionTagItem, Tags: []string{"x"}}}, 10)

	require.NoError(t, engine.Fire(ctx, TriggerNewRelease, Context{}))
	assert.Empty(t, fired)
}
