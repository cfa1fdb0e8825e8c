package diff

import (
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// Stats summarises line-level changes across the changed fields of a diff.
// ChangedRatio is 1 - 2*unmodified/(old lines + new lines), in [0, 1].
type Stats struct {
	Inserted     int     `json:"inserted"`
	Deleted      int     `json:"deleted"`
	Unmodified   int     `json:"unmodified"`
	ChangedRatio float64 `json:"changedRatio"`
}

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type lineOp struct {
	kind opKind
	line string
}

// Statistics counts inserted, deleted and unmodified lines. Only fields
// whose serialized forms differ contribute.
func Statistics(result Result) Stats {
	var stats Stats
	oldLines, newLines := 0, 0
	for _, d := range result {
		if !d.Changed() {
			continue
		}
		a := splitLines(Serialize(d.Old))
		b := splitLines(Serialize(d.New))
		oldLines += len(a)
		newLines += len(b)

		deleted := 0
		for _, e := range lineEdits(d.Field, a, b) {
			start, end := editRange(e, len(a))
			deleted += end - start
			if e.NewText != "" {
				stats.Inserted += len(editLines(e.NewText))
			}
		}
		stats.Deleted += deleted
		stats.Unmodified += len(a) - deleted
	}
	if total := oldLines + newLines; total > 0 {
		stats.ChangedRatio = 1 - float64(2*stats.Unmodified)/float64(total)
	}
	return stats
}

// splitLines splits text on newlines. One trailing newline terminates the
// last line rather than opening an empty one.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// lineEdits runs Myers over the newline-terminated forms of base and
// target, so a missing final newline never shows up as a change.
func lineEdits(name string, base, target []string) []gotextdiff.TextEdit {
	return myers.ComputeEdits(span.URIFromPath(name), joinLines(base), joinLines(target))
}

// editRange returns the half-open range of base lines an edit replaces.
func editRange(e gotextdiff.TextEdit, n int) (int, int) {
	start := e.Span.Start().Line() - 1
	end := e.Span.End().Line() - 1
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end
}

func editLines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// diffLines expands the edits turning base into target into a full line
// script, equal lines included.
func diffLines(name string, base, target []string) []lineOp {
	ops := make([]lineOp, 0, len(base)+len(target))
	pos := 0
	for _, e := range lineEdits(name, base, target) {
		start, end := editRange(e, len(base))
		if start < pos {
			start = pos
		}
		if end < start {
			end = start
		}
		for ; pos < start; pos++ {
			ops = append(ops, lineOp{kind: opEqual, line: base[pos]})
		}
		for ; pos < end; pos++ {
			ops = append(ops, lineOp{kind: opDelete, line: base[pos]})
		}
		if e.NewText != "" {
			for _, line := range editLines(e.NewText) {
				ops = append(ops, lineOp{kind: opInsert, line: line})
			}
		}
	}
	for ; pos < len(base); pos++ {
		ops = append(ops, lineOp{kind: opEqual, line: base[pos]})
	}
	return ops
}
