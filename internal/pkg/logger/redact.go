package logger

import (
	"regexp"
	"strings"
)

var secretKeys = []string{"token", "secret", "password", "api_key", "apikey", "private_key", "credential"}

// tokenParam matches credentials embedded in URLs or DSNs.
var tokenParam = regexp.MustCompile(`(?i)(access_token|api_key|key|password)=([^&\s]+)`)

// Redact masks a logged value when its key names a secret, and masks
// credential query parameters embedded in any other value.
func Redact(key, val string) string {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return Mask(val)
		}
	}
	return tokenParam.ReplaceAllStringFunc(val, func(m string) string {
		parts := tokenParam.FindStringSubmatch(m)
		return parts[1] + "=" + Mask(parts[2])
	})
}

// Mask keeps the first two characters of a secret.
// "EAAG1234" → "EA***"; values of two characters or fewer → "***".
func Mask(secret string) string {
	if len(secret) > 2 {
		return secret[:2] + "***"
	}
	return "***"
}
