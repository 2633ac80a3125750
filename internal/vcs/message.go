package vcs

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// CommitMessage builds the message for a rendered document.
func CommitMessage(source string, renderedAt time.Time) string {
	base := path.Base(source)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("feat: sync rendered %s\n\nSource: %s\nRendered at: %s",
		stem, source, renderedAt.Format("2006-01-02 15:04:05"))
}

// ValidateMessage checks the header line of message against the
// conventional commits grammar.
func ValidateMessage(message string) error {
	header, _, _ := strings.Cut(message, "\n")
	m := parser.NewMachine(conventionalcommits.WithTypes(conventionalcommits.TypesConventional))
	if _, err := m.Parse([]byte(header)); err != nil {
		return fmt.Errorf("invalid commit message %q: %w", header, err)
	}
	return nil
}
