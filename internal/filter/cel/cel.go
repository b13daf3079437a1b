// Package cel evaluates table columns whose filter semantics are written as
// CEL expressions in the table configuration.
//
// An expression sees two variables:
//
//	item       the item being filtered (map)
//	condition  {column, operator, value} of the condition being evaluated
//
// It returns a bool, or null to fall back to the generic evaluator. Mixed
// results need a dyn() branch:
//
//	condition.value == "archived" ? dyn(item.archived == true) : null
package cel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/worktrack/worktrack/internal/filter"
	"github.com/worktrack/worktrack/pkg/model"
)

var (
	celNewEnv   = cel.NewEnv
	evaluateCEL = Evaluate
)

// MaxCacheSize is the maximum number of CEL programs to cache.
const MaxCacheSize = 1000

// Compiler compiles column expressions and caches the programs by source.
type Compiler struct {
	env    *cel.Env
	logger *slog.Logger

	prgCache   map[string]cel.Program
	cacheOrder []string // FIFO eviction
	cacheMutex sync.RWMutex
}

// NewCompiler creates a compiler with the item/condition environment and the
// CEL string extensions (lowerAscii, split, ...).
func NewCompiler(logger *slog.Logger) (*Compiler, error) {
	env, err := celNewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("condition", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Compiler{
		env:        env,
		logger:     logger,
		prgCache:   make(map[string]cel.Program),
		cacheOrder: make([]string, 0, MaxCacheSize),
	}, nil
}

// Program returns the compiled program for expr.
func (c *Compiler) Program(expr string) (cel.Program, error) {
	c.cacheMutex.RLock()
	prg, ok := c.prgCache[expr]
	c.cacheMutex.RUnlock()
	if ok {
		return prg, nil
	}

	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	if prg, ok := c.prgCache[expr]; ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}

	if len(c.prgCache) >= MaxCacheSize {
		oldest := c.cacheOrder[0]
		delete(c.prgCache, oldest)
		c.cacheOrder = c.cacheOrder[1:]
		c.logger.Debug("CEL cache full, evicted oldest entry")
	}

	c.prgCache[expr] = prg
	c.cacheOrder = append(c.cacheOrder, expr)
	return prg, nil
}

// Evaluate runs prg for one item and condition. ok is false when the
// expression returned null.
func Evaluate(prg cel.Program, item map[string]interface{}, cond model.Condition) (matched bool, ok bool, err error) {
	out, _, err := prg.Eval(map[string]interface{}{
		"item":      item,
		"condition": conditionInput(cond),
	})
	if err != nil {
		return false, false, err
	}
	return result(out)
}

func result(out ref.Val) (bool, bool, error) {
	switch v := out.(type) {
	case types.Bool:
		return bool(v), true, nil
	case types.Null:
		return false, false, nil
	}
	return false, false, fmt.Errorf("CEL result is not boolean: %s", out.Type().TypeName())
}

func conditionInput(cond model.Condition) map[string]interface{} {
	return map[string]interface{}{
		"column":   cond.Column,
		"operator": string(cond.Operator),
		"value":    cond.Value.Interface(),
	}
}

// Column compiles expr into a column evaluator for documents. Evaluation
// errors and panics are logged and the condition fails.
func (c *Compiler) Column(column, expr string) (filter.ColumnEvaluator[model.Document], error) {
	prg, err := c.Program(expr)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", column, err)
	}

	return func(item model.Document, cond model.Condition) (matched, handled bool) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("CEL column evaluation panicked",
					"column", column,
					"operator", cond.Operator,
					"error", r,
				)
				matched, handled = false, true
			}
		}()

		matched, ok, err := evaluateCEL(prg, map[string]interface{}(item), cond)
		if err != nil {
			c.logger.Warn("CEL column evaluation failed",
				"column", column,
				"operator", cond.Operator,
				"error", err,
			)
			return false, true
		}
		return matched, ok
	}, nil
}

// CacheSize reports the number of cached programs.
func (c *Compiler) CacheSize() int {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()
	return len(c.prgCache)
}
