// Package console provides the terminal-backed devices the CLI attaches
// to the machine: an ANSI text console, a timing-only audio device, and
// an OS file system.
package console

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danswartzendruber/liner"
	"github.com/tliron/commonlog"
	"golang.org/x/term"
)

// Scan codes reported after a zero key for the arrow keys, matching the
// classic keyboard layout programs test against.
const (
	scanUp    = 72
	scanLeft  = 75
	scanRight = 77
	scanDown  = 80
)

// Terminal renders to stdout with ANSI control sequences and reads keys
// from a raw-mode stdin.
type Terminal struct {
	log commonlog.Logger

	mu     sync.Mutex
	col    int
	keys   []int
	onKey  func(code int)
	closed bool
}

// NewTerminal builds the device.
func NewTerminal() *Terminal {
	return &Terminal{log: commonlog.GetLogger("qbvm.console")}
}

// Close cancels key watching.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.onKey = nil
}

func (t *Terminal) Print(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	os.Stdout.WriteString(text)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		t.col = len(text) - i - 1
	} else {
		t.col += len(text)
	}
}

func (t *Terminal) CursorX() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.col
}

func (t *Terminal) Cls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	os.Stdout.WriteString("\x1b[2J\x1b[H")
	t.col = 0
}

func (t *Terminal) Locate(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(os.Stdout, "\x1b[%d;%dH", row, col)
	if col > 0 {
		t.col = col - 1
	}
}

// ansiColor maps the dialect's 16-color palette to SGR codes.
func ansiColor(c int, background bool) string {
	base := 30
	if background {
		base = 40
	}
	bright := c >= 8
	if bright {
		c -= 8
		base += 60
	}
	// Palette order: black, blue, green, cyan, red, magenta, brown, white.
	ansi := []int{0, 4, 2, 6, 1, 5, 3, 7}
	if c < 0 || c >= len(ansi) {
		return ""
	}
	return fmt.Sprintf("\x1b[%dm", base+ansi[c])
}

func (t *Terminal) Color(fg, bg, border int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := ansiColor(fg, false); s != "" {
		os.Stdout.WriteString(s)
	}
	if bg >= 0 {
		if s := ansiColor(bg, true); s != "" {
			os.Stdout.WriteString(s)
		}
	}
}

func (t *Terminal) Screen(mode int) {
	t.log.Infof("SCREEN %d", mode)
}

func (t *Terminal) Width(cols, rows int) {
	t.log.Infof("WIDTH %d, %d", cols, rows)
}

// Input reads one edited line and completes synchronously.
func (t *Terminal) Input(prompt string, done func(line string, err error)) {
	l := liner.NewLiner()
	defer l.Close()
	line, err := l.Prompt(prompt)
	if err == nil {
		t.mu.Lock()
		t.col = 0
		t.mu.Unlock()
	}
	done(line, err)
}

// GetKey polls stdin in raw, non-blocking mode. Escape sequences for the
// arrow keys come back as a zero key followed by the scan code.
func (t *Terminal) GetKey() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.keys) > 0 {
		code := t.keys[0]
		t.keys = t.keys[1:]
		return code
	}

	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return -1
	}
	defer term.Restore(fd, old)
	if err := syscall.SetNonblock(fd, true); err != nil {
		return -1
	}
	defer syscall.SetNonblock(fd, false)

	var buf [8]byte
	n, _ := syscall.Read(fd, buf[:])
	if n <= 0 {
		return -1
	}
	return t.decodeKeys(buf[:n])
}

// decodeKeys translates a raw read into the first key code, buffering
// the rest. The caller holds the lock.
func (t *Terminal) decodeKeys(raw []byte) int {
	var codes []int
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0x1b && i+2 < len(raw) && raw[i+1] == '[' {
			switch raw[i+2] {
			case 'A':
				codes = append(codes, 0, scanUp)
			case 'B':
				codes = append(codes, 0, scanDown)
			case 'C':
				codes = append(codes, 0, scanRight)
			case 'D':
				codes = append(codes, 0, scanLeft)
			}
			i += 2
			continue
		}
		codes = append(codes, int(raw[i]))
	}
	if len(codes) == 0 {
		return -1
	}
	t.keys = append(t.keys, codes[1:]...)
	return codes[0]
}

// OnKey arms a one-shot callback for the next key press; nil disarms it.
func (t *Terminal) OnKey(cb func(code int)) {
	t.mu.Lock()
	t.onKey = cb
	t.mu.Unlock()
	if cb == nil {
		return
	}
	go t.watchKey(cb)
}

func (t *Terminal) watchKey(cb func(code int)) {
	for {
		t.mu.Lock()
		armed := t.onKey != nil && !t.closed
		t.mu.Unlock()
		if !armed {
			return
		}
		if code := t.GetKey(); code >= 0 {
			t.mu.Lock()
			current := t.onKey
			t.onKey = nil
			t.mu.Unlock()
			if current != nil {
				current(code)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// Sprite calls have no terminal rendering; they log and complete so
// programs written for a graphical host still run.
func (t *Terminal) CreateSprite(n int, image string, frames int, done func(err error)) {
	t.log.Infof("SPSET %d (%d frames)", n, frames)
	done(nil)
}

func (t *Terminal) OffsetSprite(n, x, y int) {
	t.log.Debugf("SPOFS %d, %d, %d", n, x, y)
}

func (t *Terminal) ScaleSprite(n int, sx, sy float64) {
	t.log.Debugf("SPSCALE %d, %g, %g", n, sx, sy)
}

func (t *Terminal) RotateSprite(n int, angle float64) {
	t.log.Debugf("SPROT %d, %g", n, angle)
}

func (t *Terminal) HomeSprite(n, hx, hy int) {
	t.log.Debugf("SPHOME %d, %d, %d", n, hx, hy)
}

func (t *Terminal) DisplaySprite(n int, show bool) {
	t.log.Debugf("sprite %d visible=%t", n, show)
}

func (t *Terminal) AnimateSprite(n, from, to int, loop bool) {
	t.log.Debugf("SPANIM %d, %d, %d, %t", n, from, to, loop)
}

func (t *Terminal) ClearSprite(n int) {
	t.log.Debugf("SPCLR %d", n)
}
