package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// StarlarkEvaluator executes Starlark scripts and predicate expressions
// safely.
type StarlarkEvaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second // Default timeout
	}
	return &StarlarkEvaluator{
		timeout: timeout,
		logger:  zerolog.Nop(),
	}
}

// WithLogger sets the logger that reports failing predicate expressions.
func (se *StarlarkEvaluator) WithLogger(logger zerolog.Logger) *StarlarkEvaluator {
	se.logger = logger.With().Str("component", "starlark").Logger()
	return se
}

// Evaluate executes a Starlark script with input bound as predeclared names
// and returns its public globals. Input values may be plain Go data or
// Starlark values such as builtins. The script is cancelled after the
// evaluator's timeout.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, script string, input map[string]interface{}) (*StarlarkResult, error) {
	startTime := time.Now()
	fail := func(err error) (*StarlarkResult, error) {
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         err.Error(),
		}, err
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return fail(fmt.Errorf("failed to convert input %s: %w", key, err))
		}
		predeclared[key] = starlarkVal
	}

	thread := &starlark.Thread{
		Name:  "craig",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", se.timeout))
	})
	defer stop()

	globals, err := starlark.ExecFile(thread, "script.star", script, predeclared)
	if err != nil {
		if evalCtx.Err() != nil {
			return fail(fmt.Errorf("starlark execution timeout: %w", err))
		}
		return fail(fmt.Errorf("starlark execution failed: %w", err))
	}

	output := make(map[string]interface{})
	for name, val := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, isFunc := val.(*starlark.Function); isFunc {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return fail(fmt.Errorf("failed to convert output %s: %w", name, err))
		}
		output[name] = goVal
	}

	return &StarlarkResult{
		Output:        output,
		ExecutionTime: time.Since(startTime),
	}, nil
}

// StateChange compiles script into a store state-change hook. The script
// sees the names of EvalExpr and edits the buffer by assigning a dict to
// updates; its keys are merged into the candidate. A failing script leaves
// the candidate unchanged.
func (se *StarlarkEvaluator) StateChange(script string) (store.StateChangeFunc, error) {
	if _, err := syntax.Parse("script.star", script, 0); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return func(candidate store.Entity, sctx *store.Context) {
		env, err := exprEnv(candidate, sctx)
		if err != nil {
			se.logFailure(script, sctx, err)
			return
		}
		input := make(map[string]interface{}, len(env))
		for name, val := range env {
			input[name] = val
		}

		result, err := se.Evaluate(context.Background(), script, input)
		if err != nil {
			se.logFailure(script, sctx, err)
			return
		}
		updates, ok := result.Output["updates"].(map[string]interface{})
		if !ok {
			return
		}
		for k, v := range updates {
			candidate[k] = v
		}
	}, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case float32:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case store.Entity:
		return toStarlarkValue(map[string]interface{}(val))
	case []store.Entity:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
