package vm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Numeric syscalls
// ---------------------------------------------------------------------------

// numericFn registers a one-argument numeric function.
func numericFn(name string, f func(float64) float64) {
	RegisterFunction(&Routine{
		Name:   name,
		Args:   []ArgType{ArgNumber},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Number(f(args[0].Num)), nil
		},
	})
}

var valPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

func init() {
	numericFn("INT", math.Floor)
	numericFn("FIX", math.Trunc)
	numericFn("ABS", math.Abs)
	numericFn("SQR", math.Sqrt)
	numericFn("SIN", math.Sin)
	numericFn("COS", math.Cos)
	numericFn("TAN", math.Tan)
	numericFn("ATN", math.Atan)
	numericFn("LOG", math.Log)
	numericFn("EXP", math.Exp)
	numericFn("SGN", func(n float64) float64 {
		switch {
		case n > 0:
			return 1
		case n < 0:
			return -1
		}
		return 0
	})

	RegisterFunction(&Routine{
		Name:     "RND",
		Variadic: true, // RND and RND(n); the argument only reseeds on negatives
		Result:   ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			if len(args) > 0 {
				if n, err := args[0].AsNumber(); err == nil && n < 0 {
					m.rng.Seed(int64(n))
				}
			}
			return Number(m.rng.Float64()), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "VAL",
		Args:   []ArgType{ArgString},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			s := strings.TrimSpace(args[0].Str)
			prefix := valPrefix.FindString(s)
			if prefix == "" {
				return Number(0), nil
			}
			n, _ := strconv.ParseFloat(prefix, 64)
			return Number(n), nil
		},
	})

	RegisterFunction(&Routine{
		Name:   "TIMER",
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return Number(now.Sub(midnight).Seconds()), nil
		},
	})

	// PEEK is a deliberate stub: it always returns 0, and existing
	// programs depend on that.
	RegisterFunction(&Routine{
		Name:   "PEEK",
		Args:   []ArgType{ArgNumber},
		Result: ArgNumber,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Number(0), nil
		},
	})
}
