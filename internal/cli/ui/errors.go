package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a formatted diagnostic with optional suggestions and hints
//
// Example output:
//
//	❌ TABLE NOT FOUND: houshold
//	   No table 'houshold' in namespace 'default'.
//
//	   Did you mean: household?
//
//	   → List tables: tablemeta tables list
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// String formats the message
func (m Message) String() string {
	var b strings.Builder

	symbol, attr := "❌", color.FgRed
	switch m.Level {
	case LevelWarning:
		symbol, attr = "⚠️", color.FgYellow
	case LevelInfo:
		symbol, attr = "ℹ️", color.FgCyan
	}
	head := paint(m.NoColor, attr, color.Bold)
	body := paint(m.NoColor, attr)

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if m.Detail != "" {
		body.Fprintf(&b, "   %s\n", m.Detail)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		paint(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		b.WriteString("\n")
		hint := paint(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}

	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.String())
}

// Success formats a success line
func Success(message string, noColor bool) string {
	return paint(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// TableNotFound reports an unknown table id together with similar ids
func TableNotFound(namespace, tableID string, suggestions []string, noColor bool) Message {
	return Message{
		Level:       LevelError,
		Context:     "table not found",
		Problem:     tableID,
		Detail:      fmt.Sprintf("No table '%s' in namespace '%s'.", tableID, namespace),
		Suggestions: suggestions,
		Hints:       []string{"List tables: tablemeta tables list -n " + namespace},
		NoColor:     noColor,
	}
}

// ConfigProblem reports an unusable configuration
func ConfigProblem(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Hints: []string{
			"View config: cat tablemeta.yml",
			"Environment overrides use the TABLEMETA_ prefix, e.g. TABLEMETA_DATA_DIR",
		},
		NoColor: noColor,
	}
}

// Warning formats a warning
func Warning(message string, noColor bool) Message {
	return Message{Level: LevelWarning, Problem: message, NoColor: noColor}
}
