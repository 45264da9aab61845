package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Validation failures. ValidationError matches them with errors.Is.
var (
	ErrNoNodes         = errors.New("no nodes")
	ErrEmptyID         = errors.New("empty node id")
	ErrDuplicateNode   = errors.New("duplicate node")
	ErrUnknownType     = errors.New("unknown generator type")
	ErrInvalidParam    = errors.New("invalid parameter")
	ErrDanglingEdge    = errors.New("edge references missing node")
	ErrDuplicateEdge   = errors.New("duplicate edge")
	ErrSourceInput     = errors.New("source generator cannot have inputs")
	ErrCycle           = errors.New("cycle")
	ErrNoOutput        = errors.New("output node not found")
	ErrUnreachable     = errors.New("node does not reach output")
	ErrGeneratorFailed = errors.New("generator construction failed")
)

// Problem is a single validation failure.
type Problem struct {
	// Node is the id of the node the problem relates to, if any.
	Node string
	Err  error
}

func (p Problem) Error() string {
	if p.Node == "" {
		return p.Err.Error()
	}
	return fmt.Sprintf("%s: %v", p.Node, p.Err)
}

func (p Problem) Unwrap() error {
	return p.Err
}

// ValidationError is returned when a description cannot be built. It
// carries every problem found, not only the first one.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	s := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		s = append(s, p.Error())
	}
	return "invalid graph: " + strings.Join(s, "; ")
}

// Is checks if any of problems match provided sentinel error.
func (e *ValidationError) Is(err error) bool {
	for _, p := range e.Problems {
		if errors.Is(p.Err, err) {
			return true
		}
	}
	return false
}

// problems accumulates validation failures.
type problems []Problem

func (ps *problems) add(node string, err error) {
	*ps = append(*ps, Problem{Node: node, Err: err})
}

func (ps *problems) addf(node string, err error, format string, args ...interface{}) {
	ps.add(node, fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...))
}

// ret returns untyped nil if there are no problems.
func (ps problems) ret() error {
	if len(ps) > 0 {
		return &ValidationError{Problems: ps}
	}
	return nil
}
