// Package receiptfilter narrows receipt result sets by field equality and CEL
// expressions over receipt fields.
package receiptfilter

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/domain/receipt"
)

// ErrInvalidExpression indicates a filter expression that does not compile to a boolean.
var ErrInvalidExpression = errors.New("invalid filter expression")

// Compiler compiles and caches filter programs.
type Compiler struct {
	env      *cel.Env
	programs sync.Map
}

// NewCompiler creates a Compiler with the receipt variable declared.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(cel.Variable("receipt", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &Compiler{env: env}, nil
}

func (c *Compiler) program(expr string) (cel.Program, error) {
	if cached, ok := c.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must evaluate to bool", ErrInvalidExpression)
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	c.programs.Store(expr, prg)
	return prg, nil
}

// Filter matches receipts against a query's filters and time window.
type Filter struct {
	kind        string
	recipientAI string
	since       time.Time
	prg         cel.Program
}

// Build prepares a Filter. A zero since disables the time window.
func (c *Compiler) Build(f query.Filters, since time.Time) (*Filter, error) {
	out := &Filter{
		kind:        strings.TrimSpace(string(f.Kind)),
		recipientAI: strings.TrimSpace(f.RecipientAI),
		since:       since,
	}
	if expr := strings.TrimSpace(f.Expr); expr != "" {
		prg, err := c.program(expr)
		if err != nil {
			return nil, err
		}
		out.prg = prg
	}
	return out, nil
}

// Match reports whether r passes every configured condition.
// An expression that fails at evaluation time, such as one reading an absent
// key, does not match.
func (f *Filter) Match(r receipt.Receipt) bool {
	if f.kind != "" && string(r.Kind) != f.kind {
		return false
	}
	if f.recipientAI != "" && r.RecipientAI != f.recipientAI {
		return false
	}
	if !f.since.IsZero() && !r.CreatedAt.IsZero() && r.CreatedAt.Before(f.since) {
		return false
	}
	if f.prg == nil {
		return true
	}
	out, _, err := f.prg.Eval(map[string]any{"receipt": fields(r)})
	if err != nil {
		return false
	}
	v, ok := out.Value().(bool)
	return ok && v
}

// Apply returns the receipts that match, preserving order.
func (f *Filter) Apply(receipts []receipt.Receipt) []receipt.Receipt {
	out := make([]receipt.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func fields(r receipt.Receipt) map[string]string {
	m := map[string]string{
		"receipt_id":   r.ReceiptID,
		"kind":         string(r.Kind),
		"task_id":      r.TaskID,
		"root_task_id": r.RootTaskID,
		"recipient_ai": r.RecipientAI,
		"status":       r.Status,
	}
	if r.ParentTaskID != "" {
		m["parent_task_id"] = r.ParentTaskID
	}
	if r.CausedByReceiptID != "" {
		m["caused_by_receipt_id"] = r.CausedByReceiptID
	}
	if !r.CreatedAt.IsZero() {
		m["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return m
}
