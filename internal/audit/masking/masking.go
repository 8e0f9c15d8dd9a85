// Package masking redacts processor identifiers, credentials and donor
// contact details before they are written to the audit trail.
package masking

import "strings"

const maskToken = "****"

type rule func(string) string

// rules maps lower-cased metadata keys to their redaction.
var rules = map[string]rule{
	"stripe_account_id":  MaskSecret,
	"stripe_customer_id": MaskSecret,
	"payment_intent_id":  MaskSecret,
	"client_secret":      MaskSecret,
	"secret":             MaskSecret,
	"token":              MaskSecret,
	"email":              MaskEmail,
	"donor_email":        MaskEmail,
}

// MaskSecret keeps a Stripe-style prefix ("acct_") and the last four
// characters: acct_1Nv0FGQ9RKHgCVdK becomes acct_****CVdK.
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var prefix string
	if i := strings.LastIndexByte(value, '_'); i >= 0 && i < len(value)-1 {
		prefix, value = value[:i+1], value[i+1:]
	}
	if len(value) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + value[len(value)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	value = strings.TrimSpace(value)
	at := strings.LastIndexByte(value, '@')
	if at <= 0 {
		return MaskSecret(value)
	}
	return value[:1] + maskToken + value[at:]
}

// MaskMetadata returns a redacted copy of input. Nested objects are walked.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskValue(rules[strings.ToLower(key)], value)
	}
	return out
}

func maskValue(mask rule, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return MaskMetadata(v)
	case string:
		if mask == nil {
			return v
		}
		return mask(v)
	case []any:
		if mask == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(mask, item)
		}
		return out
	}
	return value
}
