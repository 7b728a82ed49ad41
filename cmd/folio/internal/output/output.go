package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/render"
)

// Stdout and Stderr are swapped out in tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

func Table(headers []string, rows [][]string) {
	render.Table(Stdout, headers, rows)
}

func KeyValue(pairs [][]string) {
	maxKeyLen := 0
	for _, pair := range pairs {
		if len(pair[0]) > maxKeyLen {
			maxKeyLen = len(pair[0])
		}
	}

	for _, pair := range pairs {
		key := render.MutedStyle.Render(fmt.Sprintf("%-*s", maxKeyLen, pair[0]))
		fmt.Fprintf(Stdout, "%s  %s\n", key, pair[1])
	}
}

func Success(msg string) {
	fmt.Fprintln(Stdout, SuccessStyle.Render("✓ ")+msg)
}

func Error(msg string) {
	fmt.Fprintln(Stderr, ErrorStyle.Render("✗ ")+msg)
}

// Err prints err as a single line. Validation failures list their fields.
func Err(err error) {
	if err == nil {
		return
	}
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.ErrValidation.Code {
		Error(appErr.Message)
		return
	}
	Error(render.OneLine(err))
}

func Warning(msg string) {
	fmt.Fprintln(Stdout, render.WarningStyle.Render("⚠ ")+msg)
}

func Info(msg string) {
	fmt.Fprintln(Stdout, render.MutedStyle.Render(msg))
}

func Header(msg string) {
	fmt.Fprintln(Stdout, render.HeaderStyle.Render(msg))
}

func Println(s string) {
	fmt.Fprintln(Stdout, s)
}

func Blank() {
	fmt.Fprintln(Stdout)
}
