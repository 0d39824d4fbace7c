package vm

// ---------------------------------------------------------------------------
// Audio syscalls
// ---------------------------------------------------------------------------

func init() {
	// PLAY suspends until the music finishes; with repeat it never does.
	RegisterSubroutine(&Routine{
		Name:     "PLAY",
		Args:     []ArgType{ArgString},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			music := args[0].Str
			repeat := false
			if len(args) > 1 {
				repeat = args[1].IsTrue()
			}
			if m.audio == nil {
				return Value{}, fault("no audio device attached")
			}
			if m.prog.TestMode {
				m.audio.Background(music, repeat)
				return Value{}, nil
			}
			m.suspend()
			m.audio.Play(music, repeat, func(err error) {
				m.Resume()
			})
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name:     "BGMPLAY",
		Args:     []ArgType{ArgString},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			repeat := false
			if len(args) > 1 {
				repeat = args[1].IsTrue()
			}
			if m.audio != nil {
				m.audio.Background(args[0].Str, repeat)
			}
			return Value{}, nil
		},
	})

	RegisterSubroutine(&Routine{
		Name: "BGMSTOP",
		Fn: func(m *Machine, args []Value) (Value, error) {
			if m.audio != nil {
				m.audio.Stop()
			}
			return Value{}, nil
		},
	})
}
