// Package progress renders the step list an agent reports while it answers
// a chat message. It is a pure view over state pushed by the agent: it never
// changes the state it is given.
package progress

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// LogEntry is one step the agent reported.
type LogEntry struct {
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

// AgentState is the part of the agent's state snapshot the view uses.
type AgentState struct {
	Logs []LogEntry `json:"logs"`
}

type Status string

const (
	StatusDone    Status = "done"
	StatusActive  Status = "active"
	StatusPending Status = "pending"
)

type Step struct {
	Index  int
	Text   string
	Status Status
}

// Steps classifies every log entry. The first entry that is not done is
// active; everything after it is pending, whatever its own done flag says.
func Steps(state AgentState) []Step {
	steps := make([]Step, 0, len(state.Logs))
	active := -1
	for i, l := range state.Logs {
		st := StatusDone
		switch {
		case active >= 0:
			st = StatusPending
		case !l.Done:
			st = StatusActive
			active = i
		}
		steps = append(steps, Step{Index: i, Text: TruncateURLs(l.Message), Status: st})
	}
	return steps
}

const (
	maxURLLen  = 40
	keepURLLen = 37
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// TruncateURLs shortens URLs longer than 40 characters (runes, not bytes)
// to their first 37 characters followed by "...". Shorter URLs are left alone.
func TruncateURLs(msg string) string {
	return urlPattern.ReplaceAllStringFunc(msg, func(u string) string {
		if utf8.RuneCountInString(u) <= maxURLLen {
			return u
		}
		return string([]rune(u)[:keepURLLen]) + "..."
	})
}

// Render draws the step list, one line per step.
func Render(state AgentState) string {
	steps := Steps(state)
	if len(steps) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderStep(s))
	}
	return b.String()
}

func renderStep(s Step) string {
	switch s.Status {
	case StatusDone:
		return StepDone.Render("✔") + " " + s.Text
	case StatusActive:
		return StepActive.Render("◼") + " " + StepActive.Render(s.Text)
	default:
		return StepPending.Render("◻") + " " + StepFaint.Render(s.Text)
	}
}
