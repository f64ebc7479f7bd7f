package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/driftsync/driftsync/internal/syncerr"
)

// DDL text format, one or more records back-to-back:
//
//	FILE "docs/note.txt"
//	  HASH "a1b2c3d4e5f60718"
//	  SIZE 1024
//	  MODIFIED 1704096000
//	  CREATED 1704000000
//	  STATE SYNCED
//	  REPLICA "laptop-1" VERSION 5 MODIFIED 1704096000
//
// Whitespace is non-significant, `#` starts a line comment, and string
// literals support \n \t \r \" \\ escapes. A FILE keyword delimits the next
// record.

type tokenKind int

const (
	tokKeyword tokenKind = iota
	tokString
	tokNumber
)

type token struct {
	kind tokenKind
	text string
	line int
}

func lexDDL(input string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '"':
			s, next, err := lexString(input, i, line)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, line})
			i = next
		case c >= '0' && c <= '9' || c == '-':
			start := i
			i++
			for i < len(input) && input[i] >= '0' && input[i] <= '9' {
				i++
			}
			toks = append(toks, token{tokNumber, input[start:i], line})
		case c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_':
			start := i
			for i < len(input) && (input[i] >= 'A' && input[i] <= 'Z' || input[i] >= 'a' && input[i] <= 'z' || input[i] == '_') {
				i++
			}
			toks = append(toks, token{tokKeyword, input[start:i], line})
		default:
			return nil, syncerr.InvalidInput("line %d: unexpected character %q", line, string(c))
		}
	}
	return toks, nil
}

func lexString(input string, start, line int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		switch c {
		case '"':
			return sb.String(), i + 1, nil
		case '\\':
			i++
			if i >= len(input) {
				return "", 0, syncerr.InvalidInput("line %d: unterminated escape", line)
			}
			switch input[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				return "", 0, syncerr.InvalidInput("line %d: unknown escape \\%s", line, string(input[i]))
			}
			i++
		case '\n':
			return "", 0, syncerr.InvalidInput("line %d: unterminated string literal", line)
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, syncerr.InvalidInput("line %d: unterminated string literal", line)
}

// ParseDDL parses zero or more records from input.
func ParseDDL(input string) ([]FileMetadata, error) {
	toks, err := lexDDL(input)
	if err != nil {
		return nil, err
	}

	p := &ddlParser{toks: toks}
	var records []FileMetadata
	for !p.done() {
		m, err := p.record()
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, nil
}

type ddlParser struct {
	toks []token
	pos  int
}

func (p *ddlParser) done() bool { return p.pos >= len(p.toks) }

func (p *ddlParser) peek() (token, bool) {
	if p.done() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *ddlParser) next() (token, error) {
	t, ok := p.peek()
	if !ok {
		return token{}, syncerr.InvalidInput("unexpected end of input")
	}
	p.pos++
	return t, nil
}

func (p *ddlParser) expectString(after string) (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.kind != tokString {
		return "", syncerr.InvalidInput("line %d: expected string after %s, got %q", t.line, after, t.text)
	}
	return t.text, nil
}

func (p *ddlParser) expectNumber(after string) (int64, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}
	if t.kind != tokNumber {
		return 0, syncerr.InvalidInput("line %d: expected number after %s, got %q", t.line, after, t.text)
	}
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return 0, syncerr.InvalidInput("line %d: bad number %q", t.line, t.text)
	}
	return n, nil
}

func (p *ddlParser) record() (FileMetadata, error) {
	t, err := p.next()
	if err != nil {
		return FileMetadata{}, err
	}
	if t.kind != tokKeyword || t.text != "FILE" {
		return FileMetadata{}, syncerr.InvalidInput("line %d: expected FILE, got %q", t.line, t.text)
	}

	var m FileMetadata
	if m.FilePath, err = p.expectString("FILE"); err != nil {
		return FileMetadata{}, err
	}

	for {
		t, ok := p.peek()
		if !ok || t.kind != tokKeyword || t.text == "FILE" {
			return m, nil
		}
		p.pos++

		switch t.text {
		case "HASH":
			if m.Hash, err = p.expectString("HASH"); err != nil {
				return FileMetadata{}, err
			}
		case "SIZE":
			n, err := p.expectNumber("SIZE")
			if err != nil {
				return FileMetadata{}, err
			}
			m.Size = uint64(n)
		case "MODIFIED":
			if m.ModifiedTime, err = p.expectNumber("MODIFIED"); err != nil {
				return FileMetadata{}, err
			}
		case "CREATED":
			if m.CreatedTime, err = p.expectNumber("CREATED"); err != nil {
				return FileMetadata{}, err
			}
		case "STATE":
			st, err := p.next()
			if err != nil {
				return FileMetadata{}, err
			}
			state, ok := ParseSyncState(st.text)
			if !ok {
				return FileMetadata{}, syncerr.InvalidInput("line %d: unknown sync state %q", st.line, st.text)
			}
			m.SyncState = state
		case "REPLICA":
			rep, err := p.replica()
			if err != nil {
				return FileMetadata{}, err
			}
			m.Replicas = append(m.Replicas, rep)
		default:
			return FileMetadata{}, syncerr.InvalidInput("line %d: unknown keyword %q", t.line, t.text)
		}
	}
}

func (p *ddlParser) replica() (ReplicaInfo, error) {
	var rep ReplicaInfo
	var err error
	if rep.ReplicaID, err = p.expectString("REPLICA"); err != nil {
		return ReplicaInfo{}, err
	}

	kw, err := p.next()
	if err != nil {
		return ReplicaInfo{}, err
	}
	if kw.kind != tokKeyword || kw.text != "VERSION" {
		return ReplicaInfo{}, syncerr.InvalidInput("line %d: expected VERSION, got %q", kw.line, kw.text)
	}
	v, err := p.expectNumber("VERSION")
	if err != nil {
		return ReplicaInfo{}, err
	}
	rep.Version = uint32(v)

	kw, err = p.next()
	if err != nil {
		return ReplicaInfo{}, err
	}
	if kw.kind != tokKeyword || kw.text != "MODIFIED" {
		return ReplicaInfo{}, syncerr.InvalidInput("line %d: expected MODIFIED, got %q", kw.line, kw.text)
	}
	if rep.ModifiedTime, err = p.expectNumber("MODIFIED"); err != nil {
		return ReplicaInfo{}, err
	}
	return rep, nil
}

// FormatDDL renders records in the DDL text format.
func FormatDDL(records []FileMetadata) string {
	var sb strings.Builder
	for _, m := range records {
		fmt.Fprintf(&sb, "FILE %s\n", quoteDDL(m.FilePath))
		fmt.Fprintf(&sb, "  HASH %s\n", quoteDDL(m.Hash))
		fmt.Fprintf(&sb, "  SIZE %d\n", m.Size)
		fmt.Fprintf(&sb, "  MODIFIED %d\n", m.ModifiedTime)
		fmt.Fprintf(&sb, "  CREATED %d\n", m.CreatedTime)
		fmt.Fprintf(&sb, "  STATE %s\n", m.SyncState)
		for _, r := range m.Replicas {
			fmt.Fprintf(&sb, "  REPLICA %s VERSION %d MODIFIED %d\n", quoteDDL(r.ReplicaID), r.Version, r.ModifiedTime)
		}
	}
	return sb.String()
}

func quoteDDL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}
