package timeseries

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FillForward replaces missing values with the last observed value. With
// limit > 0 at most limit consecutive missing values are filled after each
// observation. It returns the number of values filled.
func (s *Series) FillForward(limit int) int {
	filled := 0
	last := math.NaN()
	run := 0
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			last, run = v, 0
			continue
		}
		run++
		if math.IsNaN(last) || (limit > 0 && run > limit) {
			continue
		}
		s.Values[i] = last
		filled++
	}
	return filled
}

// FillBackward replaces missing values with the next observed value,
// filling at most limit values before each observation when limit > 0.
func (s *Series) FillBackward(limit int) int {
	filled := 0
	next := math.NaN()
	run := 0
	for i := len(s.Values) - 1; i >= 0; i-- {
		v := s.Values[i]
		if !math.IsNaN(v) {
			next, run = v, 0
			continue
		}
		run++
		if math.IsNaN(next) || (limit > 0 && run > limit) {
			continue
		}
		s.Values[i] = next
		filled++
	}
	return filled
}

// FillValue replaces every missing value with v.
func (s *Series) FillValue(v float64) int {
	filled := 0
	for i := range s.Values {
		if s.IsMissing(i) {
			s.Values[i] = v
			filled++
		}
	}
	return filled
}

// FillLinear interpolates missing values in time between the observations
// bounding each gap. Gaps at the edges stay missing, as do gaps longer than
// limit when limit > 0.
func (s *Series) FillLinear(limit int) int {
	filled := 0
	prev := -1
	for i := range s.Values {
		if s.IsMissing(i) {
			continue
		}
		gap := i - prev - 1
		if prev >= 0 && gap > 0 && (limit <= 0 || gap <= limit) {
			t0, t1 := s.Dates[prev], s.Dates[i]
			v0, v1 := s.Values[prev], s.Values[i]
			span := t1.Sub(t0).Seconds()
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / float64(i-prev)
				if span > 0 {
					frac = s.Dates[j].Sub(t0).Seconds() / span
				}
				s.Values[j] = v0 + (v1-v0)*frac
				filled++
			}
		}
		prev = i
	}
	return filled
}

// FillSeasonal replaces missing values with the mean of the observed values
// on the same day of the year. Days never observed stay missing.
func (s *Series) FillSeasonal() int {
	return s.fillByKey(func(d time.Time) int { return d.YearDay() })
}

// FillMonthly replaces missing values with the mean of the observed values
// in the same calendar month.
func (s *Series) FillMonthly() int {
	return s.fillByKey(func(d time.Time) int { return int(d.Month()) })
}

func (s *Series) fillByKey(key func(time.Time) int) int {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, d := range s.Dates {
		if !s.IsMissing(i) {
			sums[key(d)] += s.Values[i]
			counts[key(d)]++
		}
	}

	filled := 0
	for i, d := range s.Dates {
		if !s.IsMissing(i) {
			continue
		}
		if n := counts[key(d)]; n > 0 {
			s.Values[i] = sums[key(d)] / float64(n)
			filled++
		}
	}
	return filled
}

// CastFrom replaces every value with other's value on the same date;
// dates missing from other become missing.
func (s *Series) CastFrom(other *Series) {
	for i, d := range s.Dates {
		v, _ := other.Lookup(d)
		s.Values[i] = v
	}
}

// CastNAFrom fills missing values from other's value on the same date
// multiplied by ratio. It returns the number of values filled.
func (s *Series) CastNAFrom(other *Series, ratio float64) int {
	filled := 0
	for i, d := range s.Dates {
		if !s.IsMissing(i) {
			continue
		}
		if v, ok := other.Lookup(d); ok && !math.IsNaN(v) {
			s.Values[i] = v * ratio
			filled++
		}
	}
	return filled
}

// Method is a single-series gap filling method.
type Method string

// Fill methods.
const (
	MethodForward  Method = "forward"
	MethodBackward Method = "backward"
	MethodValue    Method = "value"
	MethodLinear   Method = "linear"
	MethodSeasonal Method = "seasonal"
	MethodMonthly  Method = "monthly"
)

// Methods lists the fill methods in help order.
var Methods = []Method{MethodForward, MethodBackward, MethodValue, MethodLinear, MethodSeasonal, MethodMonthly}

// ParseMethod parses a method name or its short alias (nff, nfb, nfv, lin, sd, sm).
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "ffill", "nff":
		return MethodForward, nil
	case "backward", "bfill", "nfb":
		return MethodBackward, nil
	case "value", "nfv":
		return MethodValue, nil
	case "linear", "lin":
		return MethodLinear, nil
	case "seasonal", "sd":
		return MethodSeasonal, nil
	case "monthly", "sm":
		return MethodMonthly, nil
	default:
		return "", fmt.Errorf("unknown fill method %q", s)
	}
}

// Fill applies method with its optional argument: the limit for forward,
// backward and linear fills, the value for value fills.
func (s *Series) Fill(method Method, arg string) (int, error) {
	switch method {
	case MethodForward, MethodBackward, MethodLinear:
		limit := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%s fill limit must be a non-negative integer, got %q", method, arg)
			}
			limit = n
		}
		switch method {
		case MethodForward:
			return s.FillForward(limit), nil
		case MethodBackward:
			return s.FillBackward(limit), nil
		default:
			return s.FillLinear(limit), nil
		}
	case MethodValue:
		v := 0.0
		if arg != "" {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return 0, fmt.Errorf("fill value must be a number, got %q", arg)
			}
			v = f
		}
		return s.FillValue(v), nil
	case MethodSeasonal:
		return s.FillSeasonal(), nil
	case MethodMonthly:
		return s.FillMonthly(), nil
	default:
		return 0, fmt.Errorf("unknown fill method %q", method)
	}
}
