package bluez

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineDiff renders the changed lines of a record rewrite as a +/- diff for
// debug logs. Unchanged lines are omitted.
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buf strings.Builder
	for _, d := range diffs {
		var prefix byte
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = '-'
		case diffmatchpatch.DiffInsert:
			prefix = '+'
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			buf.WriteByte(prefix)
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}
