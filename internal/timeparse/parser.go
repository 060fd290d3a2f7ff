// Package timeparse turns human time phrases ("tomorrow at 3pm", "in 2
// hours") into concrete UTC instants. Parsing is pure: everything is a
// function of the phrase, the user's timezone, and the supplied now.
package timeparse

import "time"

// Matcher is one independent phrase strategy. It reports the matched
// instant, or ok=false when the phrase does not fit its shape.
type Matcher interface {
	Name() string
	Match(phrase string, loc *time.Location, now time.Time) (time.Time, bool)
}

// Parser tries an ordered list of matchers; the first match wins. The
// ordering matters: "tomorrow at 3pm" must hit the relative-day matcher
// before the bare-clock matcher sees "at 3pm".
type Parser struct {
	matchers []Matcher
}

// New creates a parser with the standard matcher set.
func New() *Parser {
	return &Parser{
		matchers: []Matcher{
			relativeOffsetMatcher{},
			relativeDayMatcher{},
			nextWeekMatcher{},
			clockTodayMatcher{},
		},
	}
}

// Parse resolves phrase against now in the user's timezone. The returned
// instant is UTC. ok is false when no matcher fires; that is the signal to
// ask the user to rephrase, not an error.
func (p *Parser) Parse(phrase string, loc *time.Location, now time.Time) (time.Time, bool) {
	for _, m := range p.matchers {
		if when, ok := m.Match(phrase, loc, now); ok {
			return when.UTC(), true
		}
	}
	return time.Time{}, false
}
