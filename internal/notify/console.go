package notify

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/gschex1112/songflow/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color. These are the
// operator-facing status lines of a run.
type ConsoleSink struct{}

// NewConsoleSink creates a new console sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert to the terminal with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	if alert.Stage != "" {
		fmt.Printf("%s [%s] %s\n", prefix, alert.Stage, alert.Message)
	} else {
		fmt.Printf("%s %s\n", prefix, alert.Message)
	}
	return nil
}
