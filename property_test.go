package apmz

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zoobzio/clockz"
)

// TestRegistryProperties verifies registration keeps the first of every name.
// Property: accepted == distinct(names), Serialize follows first occurrence.
func TestRegistryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("each name is accepted exactly once, in order", prop.ForAll(
		func(keys []int) bool {
			r := NewRegistry[namedEntry](ErrDuplicateSpanName)

			var firsts []string
			seen := make(map[string]bool)
			for _, key := range keys {
				name := "span-" + strconv.Itoa(key)
				err := r.Register(namedEntry{name: name})
				if seen[name] {
					if !errors.Is(err, ErrDuplicateName) {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				seen[name] = true
				firsts = append(firsts, name)
			}

			got := r.Serialize()
			if len(got) != len(firsts) || r.Len() != len(firsts) {
				return false
			}
			for i := range got {
				if got[i].name != firsts[i] {
					return false
				}
			}

			r.Reset()
			return r.IsEmpty() && r.Serialize() == nil
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

// TestMergeContextsProperties verifies the override layer always wins.
// Property: merged[k] == over[k] if k in over else base[k]
func TestMergeContextsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("override wins key by key without touching inputs", prop.ForAll(
		func(base, over map[string]string) bool {
			baseLen, overLen := len(base), len(over)
			merged := MergeContexts(Contexts{Tags: base}, Contexts{Tags: over}).Tags

			for k, v := range over {
				if merged[k] != v {
					return false
				}
			}
			union := len(over)
			for k, v := range base {
				if _, ok := over[k]; ok {
					continue
				}
				union++
				if merged[k] != v {
					return false
				}
			}
			return len(merged) == union && len(base) == baseLen && len(over) == overLen
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestDurationProperties verifies measured durations follow the clock.
// Property: span duration == round3(elapsed µs / 1000) and is never negative
func TestDurationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("span duration is the elapsed clock time in ms", prop.ForAll(
		func(micros int64) bool {
			clock := clockz.NewFakeClockAt(testEpoch)
			span, err := NewSpan("prop", Contexts{}, testOptions(clock))
			if err != nil {
				return false
			}
			span.Start()
			clock.Advance(time.Duration(micros) * time.Microsecond)
			span.Stop()

			return span.Duration() >= 0 && span.Duration() == round3(float64(micros)/1000)
		},
		gen.Int64Range(0, 10_000_000_000),
	))

	properties.Property("override duration is reported in ms", prop.ForAll(
		func(nanos int64) bool {
			span, err := NewSpan("prop", Contexts{}, testOptions(clockz.NewFakeClockAt(testEpoch)))
			if err != nil {
				return false
			}
			span.StopWithDuration(time.Duration(nanos))
			return span.Stopped() && span.Duration() == round3(float64(nanos)/1e6)
		},
		gen.Int64Range(0, 1_000_000_000_000),
	))

	properties.TestingRun(t)
}
