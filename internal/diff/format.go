package diff

import (
	"encoding/json"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/hexops/gotextdiff"
)

// Formatter turns one old/new pair into a presentation value.
type Formatter interface {
	Name() string
	Format(d FieldDiff) (any, error)
}

// PairFormatter keeps the raw values.
type PairFormatter struct{}

func (PairFormatter) Name() string { return "pair" }

func (PairFormatter) Format(d FieldDiff) (any, error) {
	return map[string]any{"old": d.Old, "new": d.New}, nil
}

// UnifiedFormatter renders a unified text diff of the serialized values.
type UnifiedFormatter struct{}

func (UnifiedFormatter) Name() string { return "unified" }

func (UnifiedFormatter) Format(d FieldDiff) (any, error) {
	a := splitLines(Serialize(d.Old))
	b := splitLines(Serialize(d.New))
	unified := gotextdiff.ToUnified("old/"+d.Field, "new/"+d.Field, joinLines(a), lineEdits(d.Field, a, b))
	return fmt.Sprint(unified), nil
}

// JSONFormatter renders the line script as a JSON array of
// {"tag","old","new"} blocks.
type JSONFormatter struct{}

func (JSONFormatter) Name() string { return "json" }

type jsonBlock struct {
	Tag string   `json:"tag"`
	Old []string `json:"old,omitempty"`
	New []string `json:"new,omitempty"`
}

func (JSONFormatter) Format(d FieldDiff) (any, error) {
	ops := diffLines(d.Field, splitLines(Serialize(d.Old)), splitLines(Serialize(d.New)))
	blocks := make([]jsonBlock, 0)
	for _, op := range ops {
		tag := map[opKind]string{opEqual: "eq", opDelete: "del", opInsert: "ins"}[op.kind]
		if len(blocks) == 0 || blocks[len(blocks)-1].Tag != tag {
			blocks = append(blocks, jsonBlock{Tag: tag})
		}
		last := &blocks[len(blocks)-1]
		switch op.kind {
		case opEqual:
			last.Old = append(last.Old, op.line)
			last.New = append(last.New, op.line)
		case opDelete:
			last.Old = append(last.Old, op.line)
		case opInsert:
			last.New = append(last.New, op.line)
		}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// HTMLFormatter renders an inline HTML table with <del>/<ins> rows.
type HTMLFormatter struct{}

func (HTMLFormatter) Name() string { return "html" }

func (HTMLFormatter) Format(d FieldDiff) (any, error) {
	ops := diffLines(d.Field, splitLines(Serialize(d.Old)), splitLines(Serialize(d.New)))
	var b strings.Builder
	b.WriteString(`<table class="diff-wrapper diff-inline">`)
	for _, op := range ops {
		line := html.EscapeString(op.line)
		switch op.kind {
		case opEqual:
			fmt.Fprintf(&b, `<tr class="change-eq"><td>%s</td></tr>`, line)
		case opDelete:
			fmt.Fprintf(&b, `<tr class="change-del"><td><del>%s</del></td></tr>`, line)
		case opInsert:
			fmt.Fprintf(&b, `<tr class="change-ins"><td><ins>%s</ins></td></tr>`, line)
		}
	}
	b.WriteString(`</table>`)
	return b.String(), nil
}

var formatters = map[string]Formatter{
	"pair":    PairFormatter{},
	"unified": UnifiedFormatter{},
	"json":    JSONFormatter{},
	"html":    HTMLFormatter{},
}

// FormatterFor returns the formatter registered under name. An empty name
// selects the pair formatter.
func FormatterFor(name string) (Formatter, error) {
	if name == "" {
		name = "pair"
	}
	f, ok := formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("invalid diff format: %s (valid values: %s)", name, strings.Join(FormatterNames(), ", "))
	}
	return f, nil
}

// FormatterNames lists the registered formatter names.
func FormatterNames() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Rendered is one formatted field.
type Rendered struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Render applies f to every pair in result order.
func Render(result Result, f Formatter) ([]Rendered, error) {
	out := make([]Rendered, 0, len(result))
	for _, d := range result {
		value, err := f.Format(d)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", d.Field, err)
		}
		out = append(out, Rendered{Field: d.Field, Value: value})
	}
	return out, nil
}
