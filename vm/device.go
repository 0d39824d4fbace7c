package vm

// ---------------------------------------------------------------------------
// External devices
// ---------------------------------------------------------------------------
//
// The machine talks to the outside world through these interfaces. Calls
// that await an external event take a completion callback; a device may
// complete synchronously (invoke the callback before returning), which is
// what terminal hosts and test fakes do, or later from the host's loop.

// Console is the text and sprite surface.
type Console interface {
	Cls()
	Locate(row, col int)
	Color(fg, bg, border int)
	Screen(mode int)
	Width(cols, rows int)
	Print(text string)
	// CursorX reports the current 0-based output column, which PRINT
	// zones and TAB positioning are computed from.
	CursorX() int
	// Input reads one line. done receives the text without its newline.
	Input(prompt string, done func(line string, err error))
	// GetKey pops one key from the key buffer: -1 when empty; 0 announces
	// an escape sequence whose scan code follows on the next call.
	GetKey() int
	// OnKey registers a one-shot callback for the next key press, or
	// cancels it when cb is nil. Used by argument-less SLEEP.
	OnKey(cb func(code int))

	CreateSprite(n int, image string, frames int, done func(err error))
	OffsetSprite(n, x, y int)
	ScaleSprite(n int, sx, sy float64)
	RotateSprite(n int, angle float64)
	HomeSprite(n, hx, hy int)
	DisplaySprite(n int, show bool)
	AnimateSprite(n, from, to int, loop bool)
	ClearSprite(n int)
}

// Audio plays MML music strings (tempo T, octave O, length L, notes A..G
// with # and -, rests R).
type Audio interface {
	// Play performs a music string; done fires when playback finishes
	// (never, when repeat is set — PLAY with repeat suspends forever).
	Play(music string, repeat bool, done func(err error))
	// Background starts playback without a completion.
	Background(music string, repeat bool)
	Stop()
	Beep()
}

// File is one open channel of the FileSystem.
type File interface {
	ReadLine() (string, error)
	WriteLine(text string) error
	AtEOF() bool
	Close() error
}

// FileSystem opens named files in one of the modes INPUT, OUTPUT, APPEND.
type FileSystem interface {
	Open(name, mode string) (File, error)
}
