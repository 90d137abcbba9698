package main

import (
	"errors"
	"fmt"
	"strconv"
)

var errBadFlag = errors.New("srsim: bad flag")

// parseProbability parses a probability flag.
func parseProbability(name, value string) (float64, error) {
	p, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: --%s: %s", errBadFlag, name, err)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: --%s must be between 0 and 1", errBadFlag, name)
	}
	return p, nil
}
