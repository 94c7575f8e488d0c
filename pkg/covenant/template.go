package covenant

import (
	"bufio"
	"embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed templates/*.cov
var templateFS embed.FS

// Template file names for the built-in variants.
const (
	SimpleTemplate    = "puzzle_jackpot.cov"
	PayToPlayTemplate = "puzzle_with_fee.cov"
)

// Parameter and witness names used by the built-in templates.
const (
	ParamTargetHash = "TARGET_HASH"
	ParamMinFee     = "MIN_FEE"
	WitnessSecret   = "SECRET"
)

// Decl declares a named, typed parameter or witness slot.
type Decl struct {
	Name string
	Type Type
	Line int
}

// Stmt is one body line of a template.
type Stmt struct {
	Word string
	Arg  string
	Line int
}

// Template is a parsed covenant source.
type Template struct {
	Name      string
	Source    string
	Params    []Decl
	Witnesses []Decl
	Body      []Stmt
}

// LoadTemplate parses one of the embedded templates by file name.
func LoadTemplate(name string) (*Template, error) {
	src, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, &CompileError{Template: name, Msg: "no such template"}
	}
	return ParseTemplate(name, string(src))
}

// TemplateFor returns the embedded template for a variant.
func TemplateFor(v Variant) (*Template, error) {
	switch v.Kind {
	case KindSimple:
		return LoadTemplate(SimpleTemplate)
	case KindPayToPlay:
		return LoadTemplate(PayToPlayTemplate)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, v.Kind)
	}
}

// ParseTemplate parses covenant source text.
//
// Lines are either blank, comments starting with '#', declarations
// (".param NAME TYPE", ".witness NAME TYPE") or instructions. Declarations
// must precede the first instruction. Witnesses are not named in the body:
// they are the initial stack, in declaration order.
func ParseTemplate(name, src string) (*Template, error) {
	t := &Template{Name: name, Source: src}
	seen := make(map[string]bool)

	sc := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		if strings.HasPrefix(fields[0], ".") {
			if len(t.Body) > 0 {
				return nil, &CompileError{Template: name, Line: line, Msg: "declaration after first instruction"}
			}
			if len(fields) != 3 {
				return nil, &CompileError{Template: name, Line: line, Msg: fmt.Sprintf("%s needs NAME and TYPE", fields[0])}
			}
			typ, ok := parseType(fields[2])
			if !ok {
				return nil, &CompileError{Template: name, Line: line, Msg: fmt.Sprintf("unknown type %q", fields[2])}
			}
			if seen[fields[1]] {
				return nil, &CompileError{Template: name, Line: line, Msg: fmt.Sprintf("%q declared twice", fields[1])}
			}
			seen[fields[1]] = true
			d := Decl{Name: fields[1], Type: typ, Line: line}
			switch fields[0] {
			case ".param":
				t.Params = append(t.Params, d)
			case ".witness":
				t.Witnesses = append(t.Witnesses, d)
			default:
				return nil, &CompileError{Template: name, Line: line, Msg: fmt.Sprintf("unknown directive %q", fields[0])}
			}
			continue
		}

		st := Stmt{Word: fields[0], Line: line}
		switch {
		case len(fields) == 2:
			st.Arg = fields[1]
		case len(fields) > 2:
			return nil, &CompileError{Template: name, Line: line, Msg: "too many operands"}
		}
		t.Body = append(t.Body, st)
	}
	if err := sc.Err(); err != nil {
		return nil, &CompileError{Template: name, Msg: err.Error()}
	}
	if len(t.Body) == 0 {
		return nil, &CompileError{Template: name, Msg: "template has no instructions"}
	}
	if len(t.Witnesses) > 255 {
		return nil, &CompileError{Template: name, Msg: "too many witnesses"}
	}
	return t, nil
}

func (t *Template) param(name string) (Decl, bool) {
	for _, d := range t.Params {
		if d.Name == name {
			return d, true
		}
	}
	return Decl{}, false
}

func parseIndex(s string) (byte, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return byte(n), nil
}
