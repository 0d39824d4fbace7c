package vm

// ---------------------------------------------------------------------------
// Sprite syscalls
// ---------------------------------------------------------------------------

// spriteSub registers a sprite subroutine with a fixed numeric-argument
// prefix after the sprite number.
func spriteSub(name string, extra int, apply func(con Console, n int, args []Value)) {
	argTypes := make([]ArgType, extra+1)
	for i := range argTypes {
		argTypes[i] = ArgNumber
	}
	RegisterSubroutine(&Routine{
		Name: name,
		Args: argTypes,
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			n, _ := args[0].AsInt()
			apply(con, n, args[1:])
			return Value{}, nil
		},
	})
}

func init() {
	// SPSET n, image$ [, frames] suspends until the image is ready.
	RegisterSubroutine(&Routine{
		Name:     "SPSET",
		Args:     []ArgType{ArgNumber, ArgString},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			n, _ := args[0].AsInt()
			frames := 1
			if len(args) > 2 {
				frames, _ = args[2].AsInt()
			}
			if m.prog.TestMode {
				con.CreateSprite(n, args[1].Str, frames, func(error) {})
				return Value{}, nil
			}
			m.suspend()
			con.CreateSprite(n, args[1].Str, frames, func(err error) {
				m.Resume()
			})
			return Value{}, nil
		},
	})

	spriteSub("SPOFS", 2, func(con Console, n int, args []Value) {
		x, _ := args[0].AsInt()
		y, _ := args[1].AsInt()
		con.OffsetSprite(n, x, y)
	})

	spriteSub("SPSCALE", 2, func(con Console, n int, args []Value) {
		con.ScaleSprite(n, args[0].Num, args[1].Num)
	})

	spriteSub("SPROT", 1, func(con Console, n int, args []Value) {
		con.RotateSprite(n, args[0].Num)
	})

	spriteSub("SPHOME", 2, func(con Console, n int, args []Value) {
		hx, _ := args[0].AsInt()
		hy, _ := args[1].AsInt()
		con.HomeSprite(n, hx, hy)
	})

	spriteSub("SPHIDE", 0, func(con Console, n int, args []Value) {
		con.DisplaySprite(n, false)
	})

	spriteSub("SPSHOW", 0, func(con Console, n int, args []Value) {
		con.DisplaySprite(n, true)
	})

	RegisterSubroutine(&Routine{
		Name:     "SPANIM",
		Args:     []ArgType{ArgNumber, ArgNumber, ArgNumber},
		Variadic: true,
		Fn: func(m *Machine, args []Value) (Value, error) {
			con, err := m.requireConsole()
			if err != nil {
				return Value{}, err
			}
			n, _ := args[0].AsInt()
			from, _ := args[1].AsInt()
			to, _ := args[2].AsInt()
			loop := false
			if len(args) > 3 {
				loop = args[3].IsTrue()
			}
			con.AnimateSprite(n, from, to, loop)
			return Value{}, nil
		},
	})

	spriteSub("SPCLR", 0, func(con Console, n int, args []Value) {
		con.ClearSprite(n)
	})
}
