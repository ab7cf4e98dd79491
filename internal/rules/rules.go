// Package rules implements the automation rules engine (spec §4.G): a
// closed tagged-union model for triggers/conditions/actions, validated
// with struct tags rather than accepted as free-form dynamic dicts (spec
// §9 design note "Tagged unions over dynamic dicts").
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Trigger is the closed set of events that can fire a rule.
type Trigger string

const (
	TriggerNewRelease       Trigger = "new_release"
	TriggerRecommendation   Trigger = "recommendation_generated"
	TriggerDownloadComplete Trigger = "download_completed"
	TriggerWishlistAdded    Trigger = "wishlist_item_added"
	TriggerPlaylistURLCheck Trigger = "playlist_url_check"
)

// Operator is the closed set of condition operators (spec §4.G).
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpInList       Operator = "in_list"
	OpNotInList    Operator = "not_in_list"
	OpMatchesRegex Operator = "matches_regex"
)

var negatedOperators = map[Operator]bool{
	OpNotEquals:   true,
	OpNotContains: true,
	OpNotInList:   true,
}

// Condition is one predicate in a rule's AND-joined list.
type Condition struct {
	Field    string      `json:"field" validate:"required"`
	Operator Operator    `json:"operator" validate:"required,oneof=equals not_equals contains not_contains greater_than less_than in_list not_in_list matches_regex"`
	Value    interface{} `json:"value"`
}

// ActionKind is the closed set of action verbs (spec §4.G).
type ActionKind string

const (
	ActionAddToWishlist    ActionKind = "add_to_wishlist"
	ActionStartDownload    ActionKind = "start_download"
	ActionAddToPlaylist    ActionKind = "add_to_playlist"
	ActionSendNotification ActionKind = "send_notification"
	ActionTagItem          ActionKind = "tag_item"
	ActionSetQualityProfile ActionKind = "set_quality_profile"
	ActionSkipItem         ActionKind = "skip_item"
	ActionAddToLibrary     ActionKind = "add_to_library"
	ActionImportPlaylistURL ActionKind = "import_playlist_url"
)

// Action is one step in a rule's sequential action list. Only the fields
// relevant to Kind are populated; the validator enforces the closed kind
// set but not per-kind required fields, since those vary (e.g. skip_item
// needs none).
type Action struct {
	Kind ActionKind `json:"kind" validate:"required,oneof=add_to_wishlist start_download add_to_playlist send_notification tag_item set_quality_profile skip_item add_to_library import_playlist_url"`

	Priority       string   `json:"priority,omitempty"`
	AutoDownload   *bool    `json:"auto_download,omitempty"`
	Format         string   `json:"format,omitempty"`
	PlaylistID     string   `json:"playlist_id,omitempty"`
	Note           string   `json:"note,omitempty"`
	Message        string   `json:"message,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	ProfileName    string   `json:"profile_name,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// Rule is a validated, parsed AutomationRule ready for evaluation.
type Rule struct {
	ID         uint
	Name       string
	Trigger    Trigger `validate:"required"`
	Conditions []Condition `validate:"dive"`
	Actions    []Action    `validate:"required,min=1,dive"`
	Priority   int
	Enabled    bool
}

var validate = validator.New()

// Validate checks the closed tagged-union constraints on a parsed rule,
// returning every violation it finds rather than stopping at the first.
func Validate(r *Rule) error {
	return validate.Struct(r)
}

// Context is the field bag evaluated against a rule's conditions, built by
// the caller from the triggering item (album/recommendation/download).
// Fields are looked up by name; the closed set of field names a given
// trigger actually populates lives with the router that builds the
// context (internal/pipeline, internal/recommend), not here — this
// package only evaluates whatever is present.
type Context map[string]interface{}

// Evaluate reports whether every condition in conditions holds against
// ctx, per the spec §4.G AND-semantics (testable property 6).
func Evaluate(conditions []Condition, ctx Context) bool {
	for _, c := range conditions {
		if !evaluateOne(c, ctx) {
			return false
		}
	}
	return true
}

func evaluateOne(c Condition, ctx Context) bool {
	val, present := ctx[c.Field]
	if !present {
		return negatedOperators[c.Operator]
	}
	switch c.Operator {
	case OpEquals:
		return equalsCoerced(val, c.Value)
	case OpNotEquals:
		return !equalsCoerced(val, c.Value)
	case OpContains:
		return containsCoerced(val, c.Value)
	case OpNotContains:
		return !containsCoerced(val, c.Value)
	case OpGreaterThan:
		a, b, ok := bothFloat(val, c.Value)
		return ok && a > b
	case OpLessThan:
		a, b, ok := bothFloat(val, c.Value)
		return ok && a < b
	case OpInList:
		return inList(val, c.Value)
	case OpNotInList:
		return !inList(val, c.Value)
	case OpMatchesRegex:
		return matchesRegex(val, c.Value)
	default:
		return false
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func equalsCoerced(a, b interface{}) bool {
	as, aok := asString(a)
	bs, bok := asString(b)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	af, afok := toFloat(a)
	bf, bfok := toFloat(b)
	if afok && bfok {
		return af == bf
	}
	return a == b
}

func containsCoerced(field, target interface{}) bool {
	targetStr, ok := asString(target)
	if !ok {
		return false
	}
	targetStr = strings.ToLower(targetStr)

	switch v := field.(type) {
	case []string:
		for _, item := range v {
			if strings.Contains(strings.ToLower(item), targetStr) {
				return true
			}
		}
		return false
	case []interface{}:
		for _, item := range v {
			if s, ok := asString(item); ok && strings.Contains(strings.ToLower(s), targetStr) {
				return true
			}
		}
		return false
	default:
		s, ok := asString(field)
		return ok && strings.Contains(strings.ToLower(s), targetStr)
	}
}

func bothFloat(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func inList(field, list interface{}) bool {
	fieldStr, ok := asString(field)
	if !ok {
		return false
	}
	fieldStr = strings.ToLower(fieldStr)

	var items []string
	switch v := list.(type) {
	case []string:
		items = v
	case []interface{}:
		for _, it := range v {
			if s, ok := asString(it); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(v, ",")
	default:
		return false
	}
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it), fieldStr) {
			return true
		}
	}
	return false
}

func matchesRegex(field, pattern interface{}) bool {
	fieldStr, ok := asString(field)
	if !ok {
		return false
	}
	patStr, ok := asString(pattern)
	if !ok {
		return false
	}
	return regexMatch(patStr, fieldStr)
}

var regexCache sync.Map // pattern string -> *regexp.Regexp

// regexMatch compiles and caches patterns by value, since the same rule's
// matches_regex condition is evaluated repeatedly across a job loop.
func regexMatch(pattern, s string) bool {
	if cached, ok := regexCache.Load(pattern); ok {
		re := cached.(*regexp.Regexp)
		return re.MatchString(s)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	regexCache.Store(pattern, re)
	return re.MatchString(s)
}
