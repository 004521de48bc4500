package google

import (
	"fmt"
	"strings"
)

// indexIDs maps every id in a single-column values matrix (as returned by
// the Sheets API for the id column) to the reference of its row. The header
// cell and blank cells are skipped; the first occurrence of an id wins.
func indexIDs(values [][]interface{}, sheet string) map[string]string {
	refs := make(map[string]string, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, "id")) {
			continue
		}
		if _, ok := refs[id]; ok {
			continue
		}
		refs[id] = rowRef(sheet, i+1)
	}
	return refs
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:H%d", sheet, row, row)
}
