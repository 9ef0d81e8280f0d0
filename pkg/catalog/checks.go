package catalog

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

var validate = validator.New()

// invalidTag flags a field whose string value fails the validator tag. Empty
// values are invalid too.
func invalidTag(field, tag string) store.Predicate {
	return func(candidate store.Entity, _ *store.Context) bool {
		value := candidate.Str(field)
		if value == "" {
			return true
		}
		return validate.Var(value, tag) != nil
	}
}

func invalidCIDR(field string) store.Predicate {
	return invalidTag(field, "cidrv4")
}

func invalidIP(field string) store.Predicate {
	return invalidTag(field, "ipv4")
}

// invalidNumber flags a number outside [lo, hi]. JSON numbers arrive as
// float64, edits as int.
func invalidNumber(field string, lo, hi int) store.Predicate {
	return func(candidate store.Entity, _ *store.Context) bool {
		var n int
		switch v := candidate[field].(type) {
		case int:
			n = v
		case float64:
			if v != float64(int(v)) {
				return true
			}
			n = int(v)
		default:
			return true
		}
		return validate.Var(n, fmt.Sprintf("min=%d,max=%d", lo, hi)) != nil
	}
}

// invalidPublicKey accepts an authorized_keys line of a key type VPC and
// Power key resources support, plus "NONE" for keys read from data. The
// label must match the encoded key.
func invalidPublicKey(field string) store.Predicate {
	return func(candidate store.Entity, _ *store.Context) bool {
		line := strings.TrimSpace(candidate.Str(field))
		if line == "NONE" {
			return false
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return true
		}
		if !publicKeyTypes[key.Type()] {
			return true
		}
		return strings.Fields(line)[0] != key.Type()
	}
}

var publicKeyTypes = map[string]bool{
	ssh.KeyAlgoRSA:     true,
	ssh.KeyAlgoED25519: true,
}

func usesData(candidate store.Entity, _ *store.Context) bool {
	return candidate.Bool("use_data")
}
