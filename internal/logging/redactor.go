package logging

import (
	"strings"
)

const redactedValue = "[REDACTED]"

// Redactor replaces the values of sensitive fields before they are written.
type Redactor struct {
	sensitiveKeys map[string]bool
}

// NewRedactor creates a Redactor that knows the engine's secret-bearing fields.
func NewRedactor() *Redactor {
	keys := []string{
		// Credentials
		"password",
		"device_password",
		"client_secret",
		"secret_hash",
		"code",
		"sms_mfa_code",

		// Tokens
		"token",
		"id_token",
		"access_token",
		"refresh_token",
		"authorization",
		"session",

		// SRP values
		"a",
		"srp_a",
		"srp_b",
		"salt",
		"secret_block",
		"signature",
		"verifier",
		"password_verifier",
		"key",
		"derived_key",
	}

	r := &Redactor{sensitiveKeys: make(map[string]bool, len(keys))}
	for _, k := range keys {
		r.sensitiveKeys[k] = true
	}
	return r
}

// AddSensitiveKey adds a custom key to the redaction list.
func (r *Redactor) AddSensitiveKey(key string) {
	r.sensitiveKeys[strings.ToLower(key)] = true
}

// RedactFields returns a copy of fields with sensitive values replaced.
// Nested maps are redacted recursively.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	redacted := make(map[string]any, len(fields))
	for k, v := range fields {
		if r.isSensitiveKey(k) {
			redacted[k] = redactedValue
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			redacted[k] = r.RedactFields(nested)
		case map[string]string:
			redacted[k] = r.redactStringMap(nested)
		default:
			redacted[k] = v
		}
	}

	return redacted
}

// redactStringMap handles wire parameter maps such as ChallengeResponses.
func (r *Redactor) redactStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if r.isSensitiveKey(k) {
			out[k] = redactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

// isSensitiveKey matches case-insensitively, either exactly or by suffix so
// that wire names such as "IdToken" or "PASSWORD_CLAIM_SIGNATURE" are covered.
func (r *Redactor) isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if r.sensitiveKeys[k] {
		return true
	}
	for _, suffix := range []string{"token", "password", "_signature", "secret_block", "_code"} {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}
