/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/telekom/tdi/pkg/tdi/client"
)

func WriteTaskTable(w io.Writer, tasks []client.Task) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATE\tUPDATED\tTEXT")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.State, formatTime(t.UpdatedAt.Time()), t.Text)
	}
	_ = tw.Flush()
}

// WriteKeyValueTable prints a flat object as sorted FIELD/VALUE rows. Nested
// values are rendered as compact JSON and nulls are skipped.
func WriteKeyValueTable(w io.Writer, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, formatValue(obj[k]))
	}
	_ = tw.Flush()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64, bool, json.Number:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
