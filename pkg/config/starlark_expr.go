package config

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// CheckExpr reports whether expr parses as a single Starlark expression.
func CheckExpr(expr string) error {
	if _, err := syntax.ParseExpr("expr.star", expr, 0); err != nil {
		return fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	return nil
}

// EvalExpr evaluates a single expression against an edit-buffer candidate.
//
// The expression sees these names:
//
//	entity      the candidate as a dict
//	original    the persisted entity being edited, or None
//	parent      the parent key of a sub-entity, or ""
//	type        the qualified type name
//	has(type, key), has_in(type, parent, key)
//	keys(type), keys_in(type, parent)
//	find(type, parent, key)   an entity dict or None
//	valid_name(s)
//
// Evaluation is cancelled after the evaluator's timeout.
func (se *StarlarkEvaluator) EvalExpr(ctx context.Context, expr string, candidate store.Entity, sctx *store.Context) (starlark.Value, error) {
	env, err := exprEnv(candidate, sctx)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{
		Name:  "craig-expr",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(fmt.Sprintf("expression timeout after %v", se.timeout))
	})
	defer stop()

	val, err := starlark.Eval(thread, "expr.star", expr, env)
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation failed: %w", err)
	}
	return val, nil
}

// Predicate compiles expr into a store predicate. An expression that fails
// at evaluation time is reported and counts as failOpen.
func (se *StarlarkEvaluator) Predicate(expr string, failOpen bool) (store.Predicate, error) {
	if err := CheckExpr(expr); err != nil {
		return nil, err
	}
	return func(candidate store.Entity, sctx *store.Context) bool {
		val, err := se.EvalExpr(context.Background(), expr, candidate, sctx)
		if err != nil {
			se.logFailure(expr, sctx, err)
			return failOpen
		}
		return bool(val.Truth())
	}, nil
}

// Groups compiles expr into a store groups function. The expression must
// produce a list of strings.
func (se *StarlarkEvaluator) Groups(expr string) (store.GroupsFunc, error) {
	if err := CheckExpr(expr); err != nil {
		return nil, err
	}
	return func(candidate store.Entity, sctx *store.Context) []string {
		val, err := se.EvalExpr(context.Background(), expr, candidate, sctx)
		if err != nil {
			se.logFailure(expr, sctx, err)
			return nil
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			se.logFailure(expr, sctx, err)
			return nil
		}
		list, _ := goVal.([]interface{})
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}, nil
}

// Text compiles expr into a store text function. Non-string results are
// formatted with their Starlark representation.
func (se *StarlarkEvaluator) Text(expr string) (store.TextFunc, error) {
	if err := CheckExpr(expr); err != nil {
		return nil, err
	}
	return func(candidate store.Entity, sctx *store.Context) string {
		val, err := se.EvalExpr(context.Background(), expr, candidate, sctx)
		if err != nil {
			se.logFailure(expr, sctx, err)
			return ""
		}
		if s, ok := starlark.AsString(val); ok {
			return s
		}
		return val.String()
	}, nil
}

func (se *StarlarkEvaluator) logFailure(expr string, sctx *store.Context, err error) {
	ev := se.logger.Warn().Err(err).Str("expr", expr)
	if sctx != nil {
		ev = ev.Str("entity_type", sctx.Type)
	}
	ev.Msg("Predicate expression failed")
}

func exprEnv(candidate store.Entity, sctx *store.Context) (starlark.StringDict, error) {
	if sctx == nil {
		sctx = &store.Context{}
	}

	entity, err := toStarlarkValue(map[string]interface{}(candidate))
	if err != nil {
		return nil, fmt.Errorf("failed to convert candidate: %w", err)
	}
	var original starlark.Value = starlark.None
	if sctx.Original != nil {
		if original, err = toStarlarkValue(sctx.Original); err != nil {
			return nil, fmt.Errorf("failed to convert original: %w", err)
		}
	}

	view := sctx.View
	return starlark.StringDict{
		"entity":   entity,
		"original": original,
		"parent":   starlark.String(sctx.Parent),
		"type":     starlark.String(sctx.Type),
		"has": starlark.NewBuiltin("has", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName, key string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &typeName, &key); err != nil {
				return nil, err
			}
			return starlark.Bool(view.Has(typeName, key)), nil
		}),
		"has_in": starlark.NewBuiltin("has_in", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName, parentKey, key string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &typeName, &parentKey, &key); err != nil {
				return nil, err
			}
			return starlark.Bool(view.HasIn(typeName, parentKey, key)), nil
		}),
		"keys": starlark.NewBuiltin("keys", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &typeName); err != nil {
				return nil, err
			}
			return toStarlarkValue(view.Keys(typeName))
		}),
		"keys_in": starlark.NewBuiltin("keys_in", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName, parentKey string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &typeName, &parentKey); err != nil {
				return nil, err
			}
			return toStarlarkValue(view.KeysIn(typeName, parentKey))
		}),
		"find": starlark.NewBuiltin("find", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var typeName, parentKey, key string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &typeName, &parentKey, &key); err != nil {
				return nil, err
			}
			found := view.Find(typeName, parentKey, key)
			if found == nil {
				return starlark.None, nil
			}
			return toStarlarkValue(found)
		}),
		"valid_name": starlark.NewBuiltin("valid_name", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			str, ok := starlark.AsString(s)
			return starlark.Bool(ok && store.ValidName(str)), nil
		}),
	}, nil
}
