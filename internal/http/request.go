package http

import (
	"fmt"
	"strconv"
	"strings"
)

// maxTopHSN caps the limit query parameter.
const maxTopHSN = 100

// ParseLimit reads a positive limit, defaulting when empty.
func ParseLimit(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxTopHSN {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxTopHSN)
	}
	return n, nil
}
