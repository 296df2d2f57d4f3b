package auth

// NormalizeBool coerces a loosely-typed role flag into a strict boolean.
// Databases migrated from older schema versions store admin_access and
// app_access as integers ("NUMERIC" affinity) or even strings, and JWT
// claims round-trip through JSON where numbers decode as float64. Only
// recognised truthy values count; anything else — including nil and
// unknown types — is false.
func NormalizeBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	case string:
		return t == "1" || t == "true"
	case []byte: // SQLite TEXT columns can surface as raw bytes
		return string(t) == "1" || string(t) == "true"
	default:
		return false
	}
}
