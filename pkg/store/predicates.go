package store

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidName reports whether s is a lowercase resource name: letters, digits
// and dashes, starting with a letter and not ending with a dash.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// InvalidName flags a missing or malformed key.
func InvalidName(field string) Predicate {
	return func(candidate Entity, _ *Context) bool {
		return !ValidName(candidate.Str(field))
	}
}

// DuplicateName flags a key already used by another entity of the context's
// type. The entity being edited is allowed to keep its own key. For sub types
// the duplicate check is limited to the context's parent.
func DuplicateName(field string) Predicate {
	return func(candidate Entity, ctx *Context) bool {
		if ctx == nil || !ctx.View.Valid() {
			return false
		}
		key := candidate.Str(field)
		if key == "" || key == ctx.OriginalKey(field) {
			return false
		}
		if strings.Contains(ctx.Type, ".") && ctx.Parent != "" {
			return ctx.View.HasIn(ctx.Type, ctx.Parent, key)
		}
		return ctx.View.Has(ctx.Type, key)
	}
}

// NameInvalid combines InvalidName and DuplicateName, the usual rule for an
// entity's key.
func NameInvalid(field string) Predicate {
	return AnyOf(InvalidName(field), DuplicateName(field))
}

// NameInvalidText renders the message matching NameInvalid.
func NameInvalidText(field string) TextFunc {
	return func(candidate Entity, ctx *Context) string {
		key := candidate.Str(field)
		if DuplicateName(field)(candidate, ctx) {
			return fmt.Sprintf("Name %q already in use", key)
		}
		if key == "" {
			return "Name cannot be empty"
		}
		return fmt.Sprintf("Name must follow the regex pattern: %s", namePattern.String())
	}
}

// ParentMissing flags a reference field whose value is empty or names no
// entity of target.
func ParentMissing(field, target string) Predicate {
	return func(candidate Entity, ctx *Context) bool {
		key := candidate.Str(field)
		if key == "" {
			return true
		}
		if ctx == nil || !ctx.View.Valid() {
			return false
		}
		return !ctx.View.Has(target, key)
	}
}

// EmptyString flags a field that is absent, nil or "".
func EmptyString(field string) Predicate {
	return func(candidate Entity, _ *Context) bool {
		return candidate.IsNull(field)
	}
}

// EmptyList flags a list field with no members.
func EmptyList(field string) Predicate {
	return func(candidate Entity, _ *Context) bool {
		list, ok := candidate[field].([]any)
		if ok {
			return len(list) == 0
		}
		return len(candidate.Strings(field)) == 0
	}
}

// AnyOf is true when any of preds is true.
func AnyOf(preds ...Predicate) Predicate {
	return func(candidate Entity, ctx *Context) bool {
		for _, p := range preds {
			if p != nil && p(candidate, ctx) {
				return true
			}
		}
		return false
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(candidate Entity, ctx *Context) bool {
		return !p(candidate, ctx)
	}
}

// FieldEquals is true when field holds value.
func FieldEquals[T comparable](field string, value T) Predicate {
	return func(candidate Entity, _ *Context) bool {
		v, ok := candidate[field].(T)
		return ok && v == value
	}
}

// KeysOf returns a Groups function listing the keys of target, for select
// fields that reference another collection.
func KeysOf(target string) GroupsFunc {
	return func(_ Entity, ctx *Context) []string {
		if ctx == nil {
			return nil
		}
		return ctx.View.Keys(target)
	}
}

// KeysUnder returns a Groups function listing the keys of a sub type under
// the parent named by the candidate's scope field.
func KeysUnder(target, scope string) GroupsFunc {
	return func(candidate Entity, ctx *Context) []string {
		if ctx == nil {
			return nil
		}
		return ctx.View.KeysIn(target, candidate.Str(scope))
	}
}
