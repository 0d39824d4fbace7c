package console

import (
	"os"
	"time"

	"github.com/tliron/commonlog"
)

// Beeper is a timing-only audio device: BEEP rings the terminal bell and
// PLAY completes after the duration the music string encodes, so programs
// that pace themselves with PLAY keep their rhythm without a synthesizer.
type Beeper struct {
	log commonlog.Logger
}

// NewBeeper builds the device.
func NewBeeper() *Beeper {
	return &Beeper{log: commonlog.GetLogger("qbvm.audio")}
}

func (b *Beeper) Beep() {
	os.Stdout.WriteString("\a")
}

func (b *Beeper) Play(music string, repeat bool, done func(err error)) {
	b.log.Infof("PLAY %q", music)
	if repeat {
		// A repeating performance never completes.
		return
	}
	time.AfterFunc(mmlDuration(music), func() { done(nil) })
}

func (b *Beeper) Background(music string, repeat bool) {
	b.log.Infof("BGMPLAY %q", music)
}

func (b *Beeper) Stop() {
	b.log.Infof("BGMSTOP")
}

// mmlDuration walks the MML subset (tempo T, octave O, length L, notes
// A..G with # and -, rests R) and totals the playing time.
func mmlDuration(music string) time.Duration {
	tempo := 120.0
	length := 4.0
	var total time.Duration

	i := 0
	readNumber := func() (float64, bool) {
		start := i
		for i < len(music) && music[i] >= '0' && music[i] <= '9' {
			i++
		}
		if i == start {
			return 0, false
		}
		n := 0.0
		for _, ch := range music[start:i] {
			n = n*10 + float64(ch-'0')
		}
		return n, true
	}

	for i < len(music) {
		ch := music[i]
		i++
		switch {
		case ch == 'T' || ch == 't':
			if n, ok := readNumber(); ok && n > 0 {
				tempo = n
			}
		case ch == 'L' || ch == 'l':
			if n, ok := readNumber(); ok && n > 0 {
				length = n
			}
		case ch == 'O' || ch == 'o':
			readNumber()
		case ch >= 'A' && ch <= 'G' || ch >= 'a' && ch <= 'g' || ch == 'R' || ch == 'r':
			if i < len(music) && (music[i] == '#' || music[i] == '-') {
				i++
			}
			noteLen := length
			if n, ok := readNumber(); ok && n > 0 {
				noteLen = n
			}
			// A quarter note lasts one beat; length is the note divisor.
			beat := time.Duration(60 / tempo * 4 / noteLen * float64(time.Second))
			total += beat
		}
	}
	return total
}
