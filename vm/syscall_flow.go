package vm

import "time"

// ---------------------------------------------------------------------------
// Flow syscalls: SLEEP, YIELD, SYSTEM, BEEP, RANDOMIZE
// ---------------------------------------------------------------------------
//
// The suspending calls follow one contract: set suspended, start the
// external operation, and hand the device a completion that calls Resume.
// In test mode they complete immediately so batch runs stay deterministic.

func init() {
	// SLEEP suspends until a key press; SLEEP n resumes after n seconds.
	RegisterSubroutine(&Routine{
		Name:     "SLEEP",
		Variadic: true,
		Fn:       sysSleep,
	})

	// YIELD suspends for one scheduler tick.
	RegisterSubroutine(&Routine{
		Name: "YIELD",
		Fn: func(m *Machine, args []Value) (Value, error) {
			if m.prog.TestMode {
				return Value{}, nil
			}
			m.suspend()
			m.yielding.Store(true)
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "SYSTEM",
		Fn: func(m *Machine, args []Value) (Value, error) {
			m.halted = true
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "BEEP",
		Fn: func(m *Machine, args []Value) (Value, error) {
			if m.audio != nil {
				m.audio.Beep()
			}
			return Value{}, nil
		},
	})

	// RANDOMIZE discards its argument: the generator's sequence is fixed
	// and existing programs rely on that.
	RegisterSubroutine(&Routine{
		Name:     "RANDOMIZE",
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			return Value{}, nil
		},
	})
}

func sysSleep(m *Machine, args []Value) (Value, error) {
	if m.prog.TestMode {
		return Value{}, nil
	}

	if len(args) == 0 {
		con, err := m.requireConsole()
		if err != nil {
			return Value{}, err
		}
		m.suspend()
		con.OnKey(func(code int) {
			m.Resume()
		})
		return Value{}, nil
	}

	seconds, err := args[0].AsNumber()
	if err != nil {
		return Value{}, fault("SLEEP: %s", err)
	}
	m.suspend()
	time.AfterFunc(time.Duration(seconds*float64(time.Second)), m.Resume)
	return Value{}, nil
}
