package exchange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zulandar/timetable/internal/graph"
)

// PredecessorRef is one entry of a predecessor code list such as
// "A1010SS+2": the predecessor's activity code, the dependency type and lag.
type PredecessorRef struct {
	Code string
	Type graph.DependencyType
	Lag  int
}

// predecessorRe splits "<code><type>?<lag>?". The code is matched lazily so
// a trailing FS/SS/FF/SF is read as the type.
var predecessorRe = regexp.MustCompile(`(?i)^([A-Za-z0-9_.\-]+?)(FS|SS|FF|SF)?([+-]\d+)?$`)

// suffixRe matches what may follow a known activity code.
var suffixRe = regexp.MustCompile(`(?i)^(FS|SS|FF|SF)?([+-]\d+)?$`)

// ParsePredecessors parses a comma or semicolon separated predecessor list.
// Blank entries are skipped.
func ParsePredecessors(codes string) ([]PredecessorRef, error) {
	return ParsePredecessorsFor(codes, nil)
}

// ParsePredecessorsFor is ParsePredecessors with the document's activity
// codes in hand. An entry is first split on the longest known code it
// starts with, so codes such as "CLASS" or "A-1" are not mistaken for a
// type or lag suffix.
func ParsePredecessorsFor(codes string, known map[string]bool) ([]PredecessorRef, error) {
	var out []PredecessorRef
	for _, raw := range strings.FieldsFunc(codes, func(r rune) bool { return r == ',' || r == ';' }) {
		entry := strings.Join(strings.Fields(raw), "")
		if entry == "" {
			continue
		}
		code, typ, lag, ok := splitKnown(entry, known)
		if !ok {
			m := predecessorRe.FindStringSubmatch(entry)
			if m == nil {
				return nil, fmt.Errorf("exchange: invalid predecessor %q", raw)
			}
			code, typ, lag = m[1], m[2], m[3]
		}
		ref := PredecessorRef{Code: code, Type: graph.FinishToStart}
		if typ != "" {
			t, err := graph.ParseDependencyType(typ)
			if err != nil {
				return nil, fmt.Errorf("exchange: predecessor %q: %w", raw, err)
			}
			ref.Type = t
		}
		if lag != "" {
			n, err := strconv.Atoi(lag)
			if err != nil {
				return nil, fmt.Errorf("exchange: predecessor %q lag: %w", raw, err)
			}
			ref.Lag = n
		}
		out = append(out, ref)
	}
	return out, nil
}

func splitKnown(entry string, known map[string]bool) (code, typ, lag string, ok bool) {
	for i := len(entry); i > 0 && len(known) > 0; i-- {
		if !known[entry[:i]] {
			continue
		}
		if m := suffixRe.FindStringSubmatch(entry[i:]); m != nil {
			return entry[:i], m[1], m[2], true
		}
	}
	return "", "", "", false
}

// FormatPredecessors renders refs in the form ParsePredecessors reads.
// Plain finish-to-start links with no lag are written as the bare code
// unless the code alone would parse as something else.
func FormatPredecessors(refs []PredecessorRef) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		var b strings.Builder
		b.WriteString(r.Code)
		if r.Type != graph.FinishToStart || r.Lag != 0 || !readsBare(r.Code) {
			b.WriteString(string(r.Type))
		}
		if r.Lag != 0 {
			b.WriteString(fmt.Sprintf("%+d", r.Lag))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ", ")
}

// readsBare reports whether code parses back as itself with no type or lag.
func readsBare(code string) bool {
	m := predecessorRe.FindStringSubmatch(code)
	return m != nil && m[1] == code && m[2] == "" && m[3] == ""
}
