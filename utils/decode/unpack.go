package decode

import (
	"errors"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// packedMarker is the signature of Dean Edwards' p.a.c.k.e.r, which most
// embed hosts use to hide their player setup.
const packedMarker = "eval(function(p,a,c,k,e,"

const unpackTimeout = 2 * time.Second

// UnpackJS returns a step that evaluates a p.a.c.k.e.r-packed script and
// yields the unpacked source. The surrounding page may contain other markup;
// the step locates the packed expression and evaluates only that. Evaluation
// runs in an isolated interpreter with a hard time limit so hostile or
// looping payloads cannot stall a resolution run.
func UnpackJS() Step {
	return Step{Name: "unpack-js", Apply: unpackJS}
}

func unpackJS(in string) (string, error) {
	idx := strings.Index(in, packedMarker)
	if idx < 0 {
		return "", &ParseError{Step: "unpack-js", Err: errors.New("no packed script found")}
	}
	// Drop the leading "eval" so the expression evaluates to the unpacked
	// source string instead of executing it.
	expr := in[idx+len("eval"):]
	expr = truncateBalanced(expr)
	if expr == "" {
		return "", &ParseError{Step: "unpack-js", Err: errors.New("unbalanced packed expression")}
	}

	vm := goja.New()
	timer := time.AfterFunc(unpackTimeout, func() {
		vm.Interrupt("unpack timeout")
	})
	defer timer.Stop()

	value, err := vm.RunString(expr)
	if err != nil {
		return "", &ParseError{Step: "unpack-js", Err: err}
	}
	out := value.String()
	if strings.TrimSpace(out) == "" {
		return "", &ParseError{Step: "unpack-js", Err: errors.New("packed script produced no output")}
	}
	return out, nil
}

// truncateBalanced returns the prefix of expr up to and including the
// parenthesis that closes its first opening one, skipping string literals.
func truncateBalanced(expr string) string {
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return expr[:i+1]
			}
		}
	}
	return ""
}
