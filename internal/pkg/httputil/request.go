package httputil

import (
	"fmt"
	"net/http"
	"strconv"
)

// QueryInt reads an integer query parameter bounded to [minValue, maxValue].
// A missing parameter yields def.
func QueryInt(r *http.Request, name string, def, minValue, maxValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < minValue || v > maxValue {
		return 0, fmt.Errorf("%s must be between %d and %d", name, minValue, maxValue)
	}
	return v, nil
}
