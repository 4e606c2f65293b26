package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/bill-scanner/internal/clipboard"
	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/intake"
	"github.com/zombor/bill-scanner/internal/receipt"
)

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Bold(true)
	footerStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Right)
	numberStyle = lipgloss.NewStyle().Align(lipgloss.Right)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func scanCommand(parent *ff.FlagSet, cfg *extractorConfig, stdout io.Writer) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(parent)
	var (
		writeCSV = fs.BoolLong("csv", "Write the CSV export")
		output   = fs.StringLong("output", "", "CSV file path (defaults to bill_<merchant>_<date>.csv)")
		copyTSV  = fs.BoolLong("copy", "Copy the rows to the clipboard for pasting into a spreadsheet")
	)

	return &ff.Command{
		Name:      "scan",
		Usage:     "billscanner scan [FLAGS] FILE",
		ShortHelp: "extract one receipt and print it as a table",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("scan requires exactly one FILE")
			}
			return scan(ctx, cfg, stdout, scanConfig{
				path:     args[0],
				writeCSV: *writeCSV,
				output:   *output,
				copy:     *copyTSV,
			})
		},
	}
}

type scanConfig struct {
	path     string
	writeCSV bool
	output   string
	copy     bool
}

func scan(ctx context.Context, cfg *extractorConfig, stdout io.Writer, sc scanConfig) error {
	sel, err := intake.FromFile(sc.path)
	if err != nil {
		return err
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer extractor.Close()

	machine := extraction.New(extractor, extraction.WithTimeout(*cfg.scanTimeout))
	machine.Select(sel)

	// Interrupts abandon the scan
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			machine.Reset()
		case <-done:
		}
	}()
	machine.Wait()
	close(done)

	state := machine.Snapshot()
	switch state.Phase {
	case extraction.Success:
	case extraction.Error:
		return errors.New(state.Error)
	default:
		return errors.New("scan cancelled")
	}

	fmt.Fprintln(stdout, renderSheet(receipt.NewSheet(state.Result)))

	if sc.writeCSV {
		path := sc.output
		if path == "" {
			path = receipt.CSVFilename(state.Result)
		}
		if err := os.WriteFile(path, receipt.CSV(state.Result), 0644); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		fmt.Fprintf(stdout, "Wrote %s\n", path)
	}

	if sc.copy {
		return copyRows(stdout, clipboard.New(), receipt.TSV(state.Result))
	}
	return nil
}

// copyRows shows "Copied!" for as long as the copier reports it
func copyRows(stdout io.Writer, copier *clipboard.Copier, tsv string) error {
	if err := copier.Copy(tsv); err != nil {
		return err
	}
	fmt.Fprint(stdout, "Copied!")
	for copier.Copied() {
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprint(stdout, "\r       \r")
	return nil
}

// renderSheet draws the cards, the item table and the summary
func renderSheet(sheet receipt.Sheet) string {
	cards := make([]string, 0, len(sheet.Cards))
	for _, c := range sheet.Cards {
		cards = append(cards, labelStyle.Render(strings.ToUpper(c.Label))+" "+valueStyle.Render(c.Value))
	}

	rows := make([][]string, 0, len(sheet.Rows)+3)
	for _, r := range sheet.Rows {
		rows = append(rows, []string{r.Description, r.Category, r.Quantity, r.UnitPrice, r.TotalPrice})
	}
	footerStart := len(rows)
	rows = append(rows,
		[]string{"", "", "", "Subtotal", sheet.Footer.Subtotal},
		[]string{"", "", "", "Tax", sheet.Footer.Tax},
		[]string{"", "", "", "Grand Total", sheet.Footer.GrandTotal},
	)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Item Description", "Category", "Qty", "Unit Price", "Total").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= footerStart:
				return cellStyle.Inherit(footerStyle)
			case col >= 2:
				return cellStyle.Inherit(numberStyle)
			default:
				return cellStyle
			}
		})

	out := strings.Join(cards, "   ") + "\n" + t.String()
	if sheet.Summary != "" {
		out += "\n" + labelStyle.Render("AI Summary:") + " " + sheet.Summary
	}
	return out
}
