package hlo

import (
	"fmt"
	"strings"
)

// Precision is the numeric precision policy attached to dot and convolution ops.
type Precision int

// Precision levels, lowest first.
const (
	PrecisionDefault Precision = iota
	PrecisionHigh
	PrecisionHighest
)

func (p Precision) String() string {
	switch p {
	case PrecisionHigh:
		return "HIGH"
	case PrecisionHighest:
		return "HIGHEST"
	default:
		return "DEFAULT"
	}
}

// ParsePrecision parses "default", "high" or "highest" (case-insensitive).
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PrecisionDefault, nil
	case "high":
		return PrecisionHigh, nil
	case "highest":
		return PrecisionHighest, nil
	}
	return PrecisionDefault, fmt.Errorf("unknown precision %q (want default, high or highest)", s)
}
