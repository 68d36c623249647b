package masking

import "strings"

const (
	maskToken  = "****"
	keptSuffix = 4
)

// Substrings that mark a metadata key as holding a credential.
var sensitiveKeys = []string{"token", "secret", "password", "authorization", "signature", "api_key"}

// MaskSecret hides all but the last four characters. A vendor prefix such
// as "whsec_" is kept so the kind of secret stays visible.
func MaskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	prefix, body := "", value
	if cut := strings.LastIndex(value, "_") + 1; cut > 0 && cut < len(value) {
		prefix, body = value[:cut], value[cut:]
	}
	if len(body) <= keptSuffix {
		return prefix + maskToken
	}
	return prefix + maskToken + body[len(body)-keptSuffix:]
}

// MaskSensitive copies metadata with credential values redacted. It walks
// nested maps and slices; blank keys are dropped.
func MaskSensitive(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskValue(isSensitiveKey(key), value)
	}
	return out
}

func maskValue(sensitive bool, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return MaskSensitive(v)
	case []any:
		masked := make([]any, len(v))
		for i, item := range v {
			masked[i] = maskValue(sensitive, item)
		}
		return masked
	case string:
		if sensitive {
			return MaskSecret(v)
		}
		return v
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range sensitiveKeys {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
