package filter

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{ //nolint:gochecknoglobals
	{Name: "Field", Pattern: `\[[a-zA-Z_][\w ]*\]`},
	{Name: "Variable", Pattern: `\{[a-zA-Z_]\w*\}`},
	{Name: "String", Pattern: `'(\\'|[^'])*'`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Operators", Pattern: `<>|<=|>=|[=<>&|(),]`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Whitespace", Pattern: `[ \r\n\t]+`},
})

var filterParser = participle.MustBuild[expression]( //nolint:gochecknoglobals
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
)

// grammar structs, mapped onto the immutable AST by compile below.

type expression struct {
	Or []*conjunction `parser:"@@ ( '|' @@ )*"`
}

type conjunction struct {
	And []*condition `parser:"@@ ( '&' @@ )*"`
}

type condition struct {
	Paren      *expression `parser:"  '(' @@ ')'"`
	Comparison *comparison `parser:"| @@"`
}

type comparison struct {
	Left  *operand   `parser:"@@"`
	Op    string     `parser:"( @( '=' | '<>' | '<=' | '>=' | '<' | '>' | 'like' | 'ilike' )"`
	Right *operand   `parser:"  @@"`
	In    []*operand `parser:"| 'in' '(' @@ ( ',' @@ )* ')' )?"`
}

type operand struct {
	Field    *string  `parser:"  @Field"`
	Variable *string  `parser:"| @Variable"`
	Str      *string  `parser:"| @String"`
	Float    *float64 `parser:"| @Float"`
	Int      *int64   `parser:"| @Int"`
	Bool     *string  `parser:"| @( 'true' | 'false' )"`
	Null     bool     `parser:"| @'null'"`
}

// Parse compiles a filter expression into a Predicate. The empty
// expression compiles to the universal predicate (matches everything).
func Parse(src string) (*Predicate, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return &Predicate{src: src}, nil
	}

	tree, err := filterParser.ParseString("", trimmed)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid filter expression %q", src)
	}

	root, err := compileExpression(tree)
	if err != nil {
		return nil, err
	}

	return &Predicate{root: root, src: src}, nil
}

// MustParse is Parse for expressions known to be valid, e.g. in tests.
func MustParse(src string) *Predicate {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}

	return p
}

func compileExpression(e *expression) (node, error) {
	branches := make([]node, 0, len(e.Or))

	for _, c := range e.Or {
		n, err := compileConjunction(c)
		if err != nil {
			return nil, err
		}

		branches = append(branches, n)
	}

	if len(branches) == 1 {
		return branches[0], nil
	}

	return &orNode{branches: branches}, nil
}

func compileConjunction(c *conjunction) (node, error) {
	branches := make([]node, 0, len(c.And))

	for _, cond := range c.And {
		n, err := compileCondition(cond)
		if err != nil {
			return nil, err
		}

		branches = append(branches, n)
	}

	if len(branches) == 1 {
		return branches[0], nil
	}

	return &andNode{branches: branches}, nil
}

func compileCondition(c *condition) (node, error) {
	if c.Paren != nil {
		return compileExpression(c.Paren)
	}

	return compileComparison(c.Comparison)
}

func compileComparison(c *comparison) (node, error) {
	left, err := compileOperand(c.Left)
	if err != nil {
		return nil, err
	}

	if len(c.In) > 0 {
		list := make([]*value, 0, len(c.In))

		for _, o := range c.In {
			v, errOp := compileOperand(o)
			if errOp != nil {
				return nil, errOp
			}

			list = append(list, v)
		}

		return &cmpNode{left: left, op: "in", list: list}, nil
	}

	if c.Op == "" {
		return &truthNode{operand: left}, nil
	}

	right, err := compileOperand(c.Right)
	if err != nil {
		return nil, err
	}

	return &cmpNode{left: left, op: c.Op, right: right}, nil
}

func compileOperand(o *operand) (*value, error) {
	switch {
	case o.Field != nil:
		// strip the [ ] delimiters
		return &value{field: strings.Trim(*o.Field, "[]")}, nil
	case o.Variable != nil:
		return &value{variable: strings.Trim(*o.Variable, "{}")}, nil
	case o.Str != nil:
		s := strings.Trim(*o.Str, "'")
		s = strings.ReplaceAll(s, `\'`, `'`)

		return &value{literal: s, isLit: true}, nil
	case o.Float != nil:
		return &value{literal: *o.Float, isLit: true}, nil
	case o.Int != nil:
		return &value{literal: float64(*o.Int), isLit: true}, nil
	case o.Bool != nil:
		b, err := strconv.ParseBool(*o.Bool)
		if err != nil {
			return nil, errors.Wrap(err, "invalid boolean literal")
		}

		return &value{literal: b, isLit: true}, nil
	default:
		return &value{literal: nil, isLit: true}, nil
	}
}
