package logging

import "strings"

const redacted = "[REDACTED]"

// sensitiveKeys never have their values written out.
var sensitiveKeys = map[string]struct{}{
	"password":    {},
	"password2":   {},
	"token":       {},
	"reset_token": {},
	"secret":      {},
	"secret_key":  {},
	"cookie":      {},
}

// redact returns args with the values of sensitive keys masked. args is
// copied only when something needs masking.
func redact(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if _, hit := sensitiveKeys[strings.ToLower(key)]; !hit {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = redacted
	}
	if out == nil {
		return args
	}
	return out
}
