// Package patch decodes and applies RFC 6902 JSON Patch documents to the rule
// database document.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
)

// Op is the kind of a single patch operation.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpTest    Op = "test"
)

var SupportedOps = []Op{
	OpAdd,
	OpRemove,
	OpReplace,
	OpTest,
}

// ErrPathNotFound is returned when a remove or replace targets a missing path.
var ErrPathNotFound = errors.New("path does not exist")

// Operation is one entry of a patch document.
type Operation struct {
	Op    Op              `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Patch is an ordered list of operations. Operations apply in list order, each
// one against the result of the previous.
type Patch []Operation

// ApplyError reports which operation of a patch failed and on which path.
type ApplyError struct {
	Index int
	Op    Op
	Path  string
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("operation %d (%s %q): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Decode parses and validates a patch document.
func Decode(data []byte) (Patch, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patch JSON: %w", err)
	}
	p := Patch(ops)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every operation for a supported op, a well-formed pointer and
// a value where the op needs one.
func (p Patch) Validate() error {
	for i, op := range p {
		if err := validateOperation(op); err != nil {
			return &ApplyError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
	}
	return nil
}

func validateOperation(op Operation) error {
	if !isSupportedOp(op.Op) {
		return fmt.Errorf("unsupported op '%s'", op.Op)
	}
	if op.Path != "" && !strings.HasPrefix(op.Path, "/") {
		return fmt.Errorf("path must be empty or start with '/'")
	}
	switch op.Op {
	case OpAdd, OpReplace, OpTest:
		if op.Value == nil {
			return fmt.Errorf("missing 'value' for op '%s'", op.Op)
		}
	}
	return nil
}

func isSupportedOp(op Op) bool {
	for _, supported := range SupportedOps {
		if op == supported {
			return true
		}
	}
	return false
}

// Apply applies the patch to a JSON document and returns the patched document.
// The input is never modified; on error the caller still holds the original.
func (p Patch) Apply(doc []byte) ([]byte, error) {
	cur := doc
	for i, op := range p {
		next, err := applyOperation(cur, op)
		if err != nil {
			return nil, &ApplyError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		cur = next
	}
	return cur, nil
}

// ApplyTree applies the patch to a decoded document tree and returns a new tree.
func (p Patch) ApplyTree(tree map[string]any) (map[string]any, error) {
	doc, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("error marshaling document: %w", err)
	}
	out, err := p.Apply(doc)
	if err != nil {
		return nil, err
	}
	var patched map[string]any
	if err := json.Unmarshal(out, &patched); err != nil {
		return nil, fmt.Errorf("patched document is not an object: %w", err)
	}
	return patched, nil
}

func applyOperation(doc []byte, op Operation) ([]byte, error) {
	if err := validateOperation(op); err != nil {
		return nil, err
	}
	if op.Op == OpRemove || op.Op == OpReplace {
		var tree any
		if err := json.Unmarshal(doc, &tree); err != nil {
			return nil, fmt.Errorf("document is not valid JSON: %w", err)
		}
		if !Exists(tree, op.Path) {
			return nil, ErrPathNotFound
		}
	}

	raw, err := json.Marshal([]Operation{op})
	if err != nil {
		return nil, err
	}
	single, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, err
	}
	return single.Apply(doc)
}

// Exists reports whether the JSON pointer resolves inside the decoded tree.
func Exists(tree any, pointer string) bool {
	if pointer == "" {
		return true
	}
	node := tree
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[token]
			if !ok {
				return false
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(n) {
				return false
			}
			node = n[idx]
		default:
			return false
		}
	}
	return true
}
