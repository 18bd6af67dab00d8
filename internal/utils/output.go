package utils

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

// Progress prints the fetcher's step lines to a terminal.
type Progress struct {
	w io.Writer
}

func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) Step(format string, args ...any) {
	pterm.Info.WithWriter(p.w).Printfln(format, args...)
}

func (p *Progress) Detail(format string, args ...any) {
	fmt.Fprintln(p.w, "  "+Dim(fmt.Sprintf(format, args...)))
}

func (p *Progress) Success(format string, args ...any) {
	pterm.Success.WithWriter(p.w).Printfln(format, args...)
}

func (p *Progress) Warning(format string, args ...any) {
	pterm.Warning.WithWriter(p.w).Printfln(format, args...)
}

// Header prints a full-width title bar.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack, pterm.Bold)).
		Sprint(title))
}

func Section(w io.Writer, title string) {
	fmt.Fprint(w, pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).Sprint(title))
}

// Table renders rows under header as a boxed table.
func Table(w io.Writer, header []string, rows [][]string) error {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)

	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(w, out)
	return nil
}
