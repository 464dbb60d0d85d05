package google

import (
	"fmt"
	"strings"

	"hopdong/internal/core"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// rows keyed by the lower-cased header. Rows with no value at all are
// dropped; short rows simply lack the trailing keys.
func parseRows(values [][]any) []core.Row {
	if len(values) == 0 {
		return nil
	}
	header := toStrings(values[0])
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]core.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := core.Row{}
		empty := true
		for i, v := range raw {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				row[header[i]] = ""
				continue
			}
			row[header[i]] = v
			empty = false
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

// rowValues lays out row in header order. Columns the row lacks are left blank.
func rowValues(header []string, row core.Row) []any {
	byKey := make(map[string]any, len(row))
	for k, v := range row {
		byKey[strings.ToLower(strings.TrimSpace(k))] = v
	}
	out := make([]any, len(header))
	for i, h := range header {
		v, ok := byKey[strings.ToLower(strings.TrimSpace(h))]
		if !ok || v == nil {
			out[i] = ""
			continue
		}
		out[i] = v
	}
	return out
}

func hasAnyColumn(header []string) bool {
	for _, h := range header {
		if indexOf(core.Columns, h) >= 0 {
			return true
		}
	}
	return false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func stringsToValues(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
