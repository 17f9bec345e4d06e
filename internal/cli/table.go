package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
)

const (
	tablePadding = 2
	maxCellWidth = 48
)

// writeTable writes left-aligned columns sized to their widest cell.
// Styled cells are measured without their escape sequences.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for idx, cell := range row {
			widths[idx] = max(widths[idx], cellWidth(cell))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) error {
		var b strings.Builder
		for idx := 0; idx < colCount; idx++ {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			b.WriteString(cell)
			if idx < colCount-1 {
				b.WriteString(strings.Repeat(" ", widths[idx]-cellWidth(cell)+tablePadding))
			}
		}
		b.WriteString("\n")
		_, err := writer.WriteString(strings.TrimRight(b.String(), " \n") + "\n")
		return err
	}

	if len(headers) > 0 {
		if err := writeRow(headers); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := writeRow(row); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func cellWidth(cell string) int {
	return ansi.PrintableRuneWidth(cell)
}

// truncateCell shortens plain text to maxCellWidth display columns.
func truncateCell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	return runewidth.Truncate(value, maxCellWidth, "…")
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
