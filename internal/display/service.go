package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Service writes operator-facing output. Colors are enabled only when the
// writer is a real terminal; piped output stays plain.
type Service struct {
	out       io.Writer
	useColors bool

	success *color.Color
	warning *color.Color
	failure *color.Color
	info    *color.Color
	header  *color.Color
}

// NewService creates a display service writing to stdout.
func NewService() *Service {
	return NewServiceWithWriter(os.Stdout)
}

// NewServiceWithWriter creates a display service writing to the given writer.
func NewServiceWithWriter(out io.Writer) *Service {
	s := &Service{
		out:     out,
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
		info:    color.New(color.FgCyan),
		header:  color.New(color.Bold),
	}

	if file, ok := out.(*os.File); ok {
		s.useColors = isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
	}
	if !s.useColors || os.Getenv("NO_COLOR") != "" {
		for _, c := range []*color.Color{s.success, s.warning, s.failure, s.info, s.header} {
			c.DisableColor()
		}
	}
	return s
}

// Info prints an informational line.
func (s *Service) Info(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s %s\n", s.info.Sprint("•"), fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (s *Service) Success(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s %s\n", s.success.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (s *Service) Warning(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s %s\n", s.warning.Sprint("!"), fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (s *Service) Error(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s %s\n", s.failure.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Header prints a bold section header.
func (s *Service) Header(text string) {
	fmt.Fprintf(s.out, "\n%s\n", s.header.Sprint(text))
}

// PrintTable renders rows as a simple aligned text table.
func (s *Service) PrintTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(widths) {
				parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
			} else {
				parts[i] = cell
			}
		}
		fmt.Fprintln(s.out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("-", widths[i])
	}
	printRow(separators)
	for _, row := range rows {
		printRow(row)
	}
}
