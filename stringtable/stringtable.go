// Package stringtable implements S4: extracting every line of localizable
// text into a stable-keyed table, normalizing inline expressions to
// ordinal placeholders (spec.md §4.1).
package stringtable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
)

// LineID is a stable identifier for one localizable line: either
// author-tagged (`line:<id>`) or compiler-generated
// (`line:<file>-<node>-<ordinal>`).
type LineID string

// StringInfo is everything the string table records about one line
// (spec.md §3).
type StringInfo struct {
	Text              string
	NodeName          string
	LineNumber        int
	FileName          string
	IsImplicitTag     bool
	Metadata          []string
	SubstitutionCount int
}

// Table is the string table threaded through compilation: a mapping from
// LineID to StringInfo. Implicit-id generation depends on its entry count
// (Len).
type Table struct {
	entries map[LineID]StringInfo
}

// New returns an empty string table.
func New() *Table {
	return &Table{entries: make(map[LineID]StringInfo)}
}

// Len returns the current number of entries — the "n" in
// `line:<file>-<node>-<n>` (spec.md §4.1: "n = current string_table size").
func (t *Table) Len() int { return len(t.entries) }

// Get looks up a line by id.
func (t *Table) Get(id LineID) (StringInfo, bool) {
	info, ok := t.entries[id]
	return info, ok
}

// All returns the full entry map. Callers must not mutate the result.
func (t *Table) All() map[LineID]StringInfo { return t.entries }

// ContainsImplicitTags reports whether any entry was compiler-generated
// rather than author-tagged.
func (t *Table) ContainsImplicitTags() bool {
	for _, info := range t.entries {
		if info.IsImplicitTag {
			return true
		}
	}
	return false
}

// Merge folds other's entries into t; on a key collision, other's entry
// replaces t's. The pipeline itself does not call Merge: S4 extracts every
// file into the one shared Table that S9 reports.
func (t *Table) Merge(other *Table) {
	for id, info := range other.entries {
		t.entries[id] = info
	}
}

// explicitLineTag extracts the `line:<id>` hashtag, if present.
func explicitLineTag(hashtags []string) (string, bool) {
	for _, h := range hashtags {
		if strings.HasPrefix(h, "line:") {
			return h, true
		}
	}
	return "", false
}

// renderText concatenates parts, replacing each embedded expression with
// an ordinal placeholder `{0}`, `{1}`, ... in source order (spec.md §4.1).
func renderText(parts []ast.TextPart) (string, int) {
	var b strings.Builder
	n := 0
	for _, p := range parts {
		if p.Expr == nil {
			b.WriteString(p.Literal)
			continue
		}
		b.WriteByte('{')
		b.WriteString(strconv.Itoa(n))
		b.WriteByte('}')
		n++
	}
	return b.String(), n
}

// Extract inserts one line (or option line) into t, implementing spec.md
// §4.1's id-assignment rule: an explicit `#line:<id>` hashtag wins; absent
// that, a deterministic implicit id is generated from the current table
// size. It returns the assigned LineID and any diagnostic (a duplicate
// explicit id is an error attached to the second occurrence).
func (t *Table) Extract(fileName, nodeName string, lineNumber int, parts []ast.TextPart, hashtags []string) (LineID, diagnostics.Diagnostic, bool) {
	text, subCount := renderText(parts)
	metadata := nonLineHashtags(hashtags)

	explicit, hasExplicit := explicitLineTag(hashtags)
	if hasExplicit {
		id := LineID(explicit)
		info := StringInfo{
			Text:              text,
			NodeName:          nodeName,
			LineNumber:        lineNumber,
			FileName:          fileName,
			IsImplicitTag:     false,
			Metadata:          metadata,
			SubstitutionCount: subCount,
		}
		if _, exists := t.entries[id]; exists {
			r := ast.Range{File: fileName, StartLine: lineNumber}
			d := diagnostics.New(fileName, r, "Duplicate line id %q", string(id))
			return id, d, true
		}
		t.entries[id] = info
		return id, diagnostics.Diagnostic{}, false
	}

	id := LineID(fmt.Sprintf("line:%s-%s-%d", strippedFileName(fileName), nodeName, t.Len()))
	t.entries[id] = StringInfo{
		Text:              text,
		NodeName:          nodeName,
		LineNumber:        lineNumber,
		FileName:          fileName,
		IsImplicitTag:     true,
		Metadata:          metadata,
		SubstitutionCount: subCount,
	}
	return id, diagnostics.Diagnostic{}, false
}

func nonLineHashtags(hashtags []string) []string {
	var out []string
	for _, h := range hashtags {
		if !strings.HasPrefix(h, "line:") {
			out = append(out, h)
		}
	}
	return out
}

func strippedFileName(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		return fileName[:i]
	}
	return fileName
}

// ExtractFile runs S4 over every node in file, walking into if-clauses and
// option bodies (a line nested three `if`s deep is still a line), and
// assigns each LineStatement and OptionLine its LineID in place. It
// returns the diagnostics produced (duplicate explicit ids); t accumulates
// every line extracted regardless of whether a diagnostic was raised.
func (t *Table) ExtractFile(file *ast.File) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, node := range file.Nodes {
		diags = append(diags, t.extractStatements(file.Name, node.Title, node.Statements)...)
	}
	return diags
}

func (t *Table) extractStatements(fileName, nodeName string, stmts []ast.Statement) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.LineStatement:
			id, d, hadErr := t.Extract(fileName, nodeName, s.Range_.StartLine, s.Parts, s.Hashtags)
			s.LineID = string(id)
			if hadErr {
				diags = append(diags, d)
			}
		case *ast.IfStatement:
			for _, clause := range s.Clauses {
				diags = append(diags, t.extractStatements(fileName, nodeName, clause.Body)...)
			}
		case *ast.OptionsStatement:
			for i := range s.Options {
				opt := &s.Options[i]
				id, d, hadErr := t.Extract(fileName, nodeName, opt.Range.StartLine, opt.Parts, opt.Hashtags)
				opt.LineID = string(id)
				if hadErr {
					diags = append(diags, d)
				}
				diags = append(diags, t.extractStatements(fileName, nodeName, opt.Body)...)
			}
		}
	}
	return diags
}
