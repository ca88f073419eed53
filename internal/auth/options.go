package auth

// Helpers for reading opaque per-engine option blocks. Options arrive
// as map[string]interface{} straight out of the TOML/JSON decoder, so
// numbers may be int64 or float64 depending on the source.

func optString(opts map[string]interface{}, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}

	return fallback
}

func optBool(opts map[string]interface{}, key string, fallback bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}

	return fallback
}

func optInt(opts map[string]interface{}, key string, fallback int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func optStrings(opts map[string]interface{}, key string) []string {
	raw, ok := opts[key].([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))

	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
