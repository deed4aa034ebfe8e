package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each sheet as tab-separated rows. Sheets are separated by a
// blank line so the chunker treats them as paragraphs; in multi-sheet workbooks
// each block starts with the sheet name. Blank rows are skipped.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	blocks := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var b strings.Builder
		if len(sheets) > 1 {
			b.WriteString(sheet)
			b.WriteByte('\n')
		}
		empty := true
		for _, row := range rows {
			line := strings.Join(row, "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			empty = false
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if !empty {
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n"), nil
}
