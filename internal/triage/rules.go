// Package triage suggests a priority and first steps for a new incident from its text.
package triage

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"golang.org/x/text/cases"
)

// MaxNextSteps caps the merged next-step list.
const MaxNextSteps = 5

// DefaultPriority is suggested when no signal fires.
const DefaultPriority = domain.PriorityP2

// Suggestion is the outcome of triaging an incident's text.
type Suggestion struct {
	SuggestedPriority domain.Priority `json:"suggested_priority"`
	Rationale         string          `json:"rationale"`
	NextSteps         []string        `json:"next_steps"`
	Signals           []string        `json:"signals"`
}

// Rule maps a group of keywords to a priority floor and suggested steps.
// Keywords are matched as whole words; multi-word keywords match as a phrase.
type Rule struct {
	Signal   string
	Keywords []string
	Floor    domain.Priority
	Steps    []string
}

// DefaultRules is the built-in rule table. Every rule is evaluated; order only
// decides how next steps are merged.
var DefaultRules = []Rule{
	{
		Signal:   "outage",
		Keywords: []string{"outage", "down", "unavailable", "unreachable", "all users", "all customers", "sev0", "p0"},
		Floor:    domain.PriorityP0,
		Steps: []string{
			"Assign an owner (On-call)",
			"Confirm blast radius and impacted customers",
			"Mitigate (rollback, feature flag or traffic shift)",
			"Post a status update with the next update time",
		},
	},
	{
		Signal:   "security",
		Keywords: []string{"security", "data breach", "security breach", "leak", "leaked", "unauthorized", "compromised", "vulnerability", "exploit", "cve"},
		Floor:    domain.PriorityP0,
		Steps: []string{
			"Engage the security on-call",
			"Contain access (rotate credentials, revoke sessions)",
			"Preserve logs and evidence",
		},
	},
	{
		Signal:   "data loss",
		Keywords: []string{"data loss", "data lost", "lost data", "corrupted", "corruption", "deleted records", "missing records"},
		Floor:    domain.PriorityP0,
		Steps: []string{
			"Stop writes to the affected store",
			"Identify the last good backup or snapshot",
			"Assign an owner (On-call)",
		},
	},
	{
		Signal:   "payment/checkout",
		Keywords: []string{"checkout", "payment", "payments", "card", "charge", "refund", "billing"},
		Floor:    domain.PriorityP1,
		Steps: []string{
			"Assign an owner (On-call)",
			"Check payment provider status and error rates",
			"Confirm blast radius and impacted customers",
		},
	},
	{
		Signal:   "degradation",
		Keywords: []string{"degraded", "degradation", "latency", "timeout", "timeouts", "delay", "delayed", "intermittent", "partial", "failing", "failed", "errors", "error rate", "5xx", "500", "sev1", "p1"},
		Floor:    domain.PriorityP1,
		Steps: []string{
			"Confirm symptoms against latency and error metrics",
			"Engage the owning team and check recent changes",
			"Apply mitigation and monitor recovery",
		},
	},
	{
		Signal:   "operational pressure",
		Keywords: []string{"slow", "backlog", "retry", "retries", "webhook", "webhooks", "queue", "p2"},
		Floor:    domain.PriorityP2,
		Steps: []string{
			"Validate the incident is actionable (not duplicate or noise)",
			"Assign ownership and the next action",
			"Check breach risk and adjust priority if needed",
		},
	},
}

var genericSteps = []string{
	"Capture context and reproduction steps",
	"Assign an owner and the next action",
	"Review priority once impact is known",
}

// Triager evaluates a rule table. It holds no mutable state and is safe for
// concurrent use.
type Triager struct {
	rules []Rule
}

// New creates a triager over rules. A nil slice selects DefaultRules.
func New(rules []Rule) *Triager {
	if rules == nil {
		rules = DefaultRules
	}
	return &Triager{rules: rules}
}

// Suggest scores title and description against every rule. The highest floor
// among matching rules wins and their steps are merged in rule order without
// duplicates, capped at MaxNextSteps.
func (t *Triager) Suggest(title, description string) *Suggestion {
	words := tokenize(title + "\n" + description)

	var (
		fired    []string
		signals  []string
		steps    []string
		seen     = make(map[string]bool)
		priority domain.Priority
	)
	for _, rule := range t.rules {
		hits := matchKeywords(words, rule.Keywords)
		if len(hits) == 0 {
			continue
		}
		signals = append(signals, rule.Signal)
		fired = append(fired, fmt.Sprintf("%s (%s)", rule.Signal, strings.Join(hits, ", ")))
		if priority == "" || rule.Floor.MoreSevereThan(priority) {
			priority = rule.Floor
		}
		for _, step := range rule.Steps {
			if !seen[step] {
				seen[step] = true
				steps = append(steps, step)
			}
		}
	}

	if len(fired) == 0 {
		return &Suggestion{
			SuggestedPriority: DefaultPriority,
			Rationale:         fmt.Sprintf("No known impact signals matched; defaulting to %s until impact is confirmed.", DefaultPriority),
			NextSteps:         append([]string(nil), genericSteps...),
			Signals:           []string{},
		}
	}

	return &Suggestion{
		SuggestedPriority: priority,
		Rationale:         fmt.Sprintf("Signals fired: %s. Highest priority floor is %s.", strings.Join(fired, "; "), priority),
		NextSteps:         steps[:min(len(steps), MaxNextSteps)],
		Signals:           signals,
	}
}

// tokenize case-folds text and splits it into words of letters and digits.
func tokenize(text string) []string {
	folded := cases.Fold().String(text)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchKeywords returns the keywords found in words, in keyword order.
func matchKeywords(words, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if containsPhrase(words, tokenize(kw)) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
