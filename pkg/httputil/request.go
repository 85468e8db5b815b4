package httputil

import (
	"fmt"
	"net/http"
	"strconv"
)

// ParseQueryInt parses an integer query parameter, returning defaultVal when absent
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, raw)
	}
	return v, nil
}

// ParseQueryIntInRange is ParseQueryInt constrained to [min, max]; it writes a 400 and returns false otherwise
func ParseQueryIntInRange(w http.ResponseWriter, r *http.Request, key string, defaultVal, min, max int) (int, bool) {
	v, err := ParseQueryInt(r, key, defaultVal)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	if v < min || v > max {
		WriteBadRequest(w, fmt.Sprintf("%s must be between %d and %d", key, min, max))
		return 0, false
	}
	return v, true
}
