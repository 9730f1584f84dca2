package config

import (
	"os"
	"regexp"
	"strings"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnv expands ${VAR}, ${VAR:-default}, and $VAR references in s
// against the process environment. A reference to an unset variable with
// no default expands to the empty string.
func expandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPatterns.braced.FindStringSubmatch(match)[1])
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPatterns.simple.FindStringSubmatch(match)[1])
	})

	return s
}

// expandEnvInStrings walks v (as produced by yaml.Unmarshal into
// map[string]any) and expands environment references in every string leaf.
func expandEnvInStrings(v any) any {
	switch t := v.(type) {
	case string:
		return expandEnv(t)
	case map[string]any:
		for k, val := range t {
			t[k] = expandEnvInStrings(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = expandEnvInStrings(val)
		}
		return t
	default:
		return v
	}
}
