package query

import (
	"fmt"
	"strings"

	"github.com/tanaylab/daf-go/internal/daferr"
	"github.com/tanaylab/daf-go/internal/qtoken"
)

// Parse translates a query string into an ordered Op plan. It is a
// simple left-to-right scan over the qtoken stream: an operator token
// consumes the value token(s) that follow it and produces exactly one Op,
// with no intermediate AST, which the pipeline doesn't need.
func Parse(query string) ([]Op, error) {
	toks, err := qtoken.Tokenize(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", daferr.ErrQuerySyntax, err)
	}
	ops, _, err := parseTokens(toks, 0)
	return ops, err
}

// parseTokens builds an Op plan from toks[start:], stopping either at the
// end of the slice or as soon as a `&`/`|`/`^` combinator claims the rest
// of the stream as its own nested sub-pipeline (CombineOp). It returns the
// index one past the last token consumed, so a combinator can report that
// it consumed everything.
func parseTokens(toks []qtoken.Token, start int) ([]Op, int, error) {
	var ops []Op
	i := start
	next := func() (qtoken.Token, bool) {
		if i >= len(toks) {
			return qtoken.Token{}, false
		}
		t := toks[i]
		i++
		return t, true
	}
	expectValue := func(opText string) (string, error) {
		t, ok := next()
		if !ok || t.Kind != qtoken.KindValue {
			return "", fmt.Errorf("%w: %q expects an operand", daferr.ErrQuerySyntax, opText)
		}
		return t.Text, nil
	}

	for i < len(toks) {
		t := toks[i]
		i++
		if t.Kind == qtoken.KindValue {
			// A bare leading value names a scalar lookup (e.g. "version").
			ops = append(ops, ScalarLookupOp{Name: t.Text})
			continue
		}
		switch t.Text {
		case "/":
			axis, err := expectValue("/")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, AxisOp{Axis: axis})

		case ":":
			name, err := expectValue(":")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, LookupOp{Name: name})

		case "\\":
			spec, err := expectValue("\\")
			if err != nil {
				return nil, i, err
			}
			axis, prop, ok := strings.Cut(spec, ":")
			if !ok {
				// `\ axis : prop` tokenizes as three tokens when the colon
				// is unescaped; consume the `:` and the property here.
				if i+1 < len(toks) && toks[i].Kind == qtoken.KindOperator && toks[i].Text == ":" && toks[i+1].Kind == qtoken.KindValue {
					axis, prop = spec, toks[i+1].Text
					i += 2
				} else {
					return nil, i, fmt.Errorf("%w: Fetch expects axis:property", daferr.ErrQuerySyntax)
				}
			}
			ops = append(ops, FetchOp{TargetAxis: axis, Property: prop})

		case "@":
			group, err := expectValue("@")
			if err != nil {
				return nil, i, err
			}
			// GroupBy(g) names the grouping vector on the current axis; its
			// own target axis is the vector's own name by the worked
			// example convention ("@ type" groups cell entries by their
			// `type` vector, itself naming the `type` axis).
			ops = append(ops, GroupByOp{GroupVector: group, GroupAxis: group})

		case "%>":
			fn, err := expectValue("%>")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, ReduceOp{Fn: fn})

		case "%":
			spec, err := expectValue("%")
			if err != nil {
				return nil, i, err
			}
			name, args := splitCall(spec)
			switch name {
			case "SquareMaskRow", "SquareMaskCol":
				if len(args) < 1 {
					return nil, i, fmt.Errorf("%w: %s expects an entry argument", daferr.ErrQuerySyntax, name)
				}
				ops = append(ops, SquareMaskOp{Row: name == "SquareMaskRow", Entry: args[0]})
			case "CountBy":
				if len(args) < 1 {
					return nil, i, fmt.Errorf("%w: CountBy expects another vector name", daferr.ErrQuerySyntax)
				}
				ops = append(ops, CountByOp{Other: args[0]})
			case "IfNot":
				if len(args) < 1 {
					return nil, i, fmt.Errorf("%w: IfNot expects a replacement value", daferr.ErrQuerySyntax)
				}
				ops = append(ops, IfNotOp{Replacement: args[0]})
			case "MaskSlice":
				ops = append(ops, MaskSliceOp{})
			default:
				ops = append(ops, ElementWiseOp{Fn: name, Args: args})
			}

		case "?":
			def, err := expectValue("?")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, IfMissingOp{Default: def})

		case "=>":
			axis, err := expectValue("=>")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, AsAxisOp{Axis: axis})

		case "&", "|", "^":
			opName := map[string]string{"&": "And", "|": "Or", "^": "Xor"}[t.Text]
			// The right-hand mask operand of a boolean combinator is a
			// nested sub-query; the grammar has no grouping syntax, so it
			// is taken to be everything remaining in the token stream.
			sub, consumed, err := parseTokens(toks, i)
			if err != nil {
				return nil, consumed, err
			}
			if len(sub) == 0 {
				return nil, i, fmt.Errorf("%w: %q expects a right-hand sub-query", daferr.ErrQuerySyntax, t.Text)
			}
			ops = append(ops, CombineOp{Op: opName, Sub: sub})
			return ops, consumed, nil

		case "!":
			ops = append(ops, negateOp{})

		case ";":
			// Pipe/sequence separator: scopes a sub-pipeline within a
			// larger one. Treated as a no-op boundary since this
			// evaluator processes one flat Op slice per top-level query.

		case "#":
			ops = append(ops, NamesOp{})

		case "=":
			cmp, err := expectValue("=")
			if err != nil {
				return nil, i, err
			}
			ops = append(ops, CompareOp{Op: "IsEqual", Operand: cmp})

		default:
			return nil, i, fmt.Errorf("%w: unknown operator %q", daferr.ErrQuerySyntax, t.Text)
		}
	}
	return ops, i, nil
}

// splitCall parses "Fn" or "Fn,arg1,arg2" operand text for % element-wise ops.
func splitCall(spec string) (string, []string) {
	parts := strings.Split(spec, ",")
	return parts[0], parts[1:]
}

// negateOp inverts a mask.
type negateOp struct{}

func (negateOp) Apply(_ *Context, in Value) (Value, error) {
	if in.Kind != KindMask {
		return Value{}, fmt.Errorf("%w: negation requires a mask", daferr.ErrQueryEvaluation)
	}
	out := make([]bool, len(in.Mask))
	for i, b := range in.Mask {
		out[i] = !b
	}
	return Value{Kind: KindMask, Axis: in.Axis, Mask: out}, nil
}
