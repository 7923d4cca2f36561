package config

// SafeFloat maps a nil pointer (JSON null / absent field) to def: typed
// deserialization where null literally maps to a named default, rather
// than a broad exception catch that would also swallow type errors.
func SafeFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// SafeInt maps a nil pointer to def.
func SafeInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// SafeString maps a nil pointer to def.
func SafeString(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// SafeBool maps a nil pointer to def.
func SafeBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
