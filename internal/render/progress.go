package render

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	progressKeyPattern = regexp.MustCompile(`progress[=:]\s*([0-9]*\.?[0-9]+)`)
	percentPattern     = regexp.MustCompile(`([0-9]{1,3}(?:\.[0-9]+)?)\s*%`)
)

// parseProgress extracts a completion fraction from a compositor output line.
// "progress=0.42" is read as a fraction; otherwise the last "NN%" wins.
func parseProgress(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	if match := progressKeyPattern.FindStringSubmatch(strings.ToLower(line)); match != nil {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, false
		}
		if value > 1 {
			value /= 100
		}
		return clampFraction(value), true
	}
	matches := percentPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return clampFraction(value / 100), true
}

func clampFraction(value float64) float64 {
	return max(0, min(1, value))
}

// scanLines splits on \n and \r so carriage-return progress bars are seen
// as they update.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
