// Package progress extracts normalized completion fractions from the
// heterogeneous output of the imaging and driver-injection tools.
package progress

import (
	"regexp"
	"strconv"
)

var (
	percentRe  = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)
	installRe  = regexp.MustCompile(`Installing (\d+) of (\d+)`)
	fractionRe = regexp.MustCompile(`(\d+)/(\d+)`)
)

// ParsePercent decodes "NN.N%" tokens (dism image apply) into a [0,1]
// fraction.
func ParsePercent(line string) (float64, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 {
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	return pct / 100, true
}

// ParseCount decodes "Installing k of n" or "k/n" counters (dism driver
// injection) into a [0,1] fraction.
func ParseCount(line string) (float64, bool) {
	m := installRe.FindStringSubmatch(line)
	if m == nil {
		m = fractionRe.FindStringSubmatch(line)
	}
	if m == nil {
		return 0, false
	}
	current, err1 := strconv.Atoi(m[1])
	total, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || total <= 0 {
		return 0, false
	}
	f := float64(current) / float64(total)
	if f > 1 {
		f = 1
	}
	return f, true
}
