package vm

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qbvm/qbvm/bytecode"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Machine
// ---------------------------------------------------------------------------

// Config bounds the machine's resources and paces its scheduler.
type Config struct {
	Quantum    int           // instructions per scheduler tick
	Tick       time.Duration // scheduler period
	StackLimit int           // operand stack depth bound
	FrameLimit int           // call stack depth bound
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		Quantum:    2048,
		Tick:       50 * time.Millisecond,
		StackLimit: 4096,
		FrameLimit: 256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Quantum <= 0 {
		c.Quantum = d.Quantum
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.StackLimit <= 0 {
		c.StackLimit = d.StackLimit
	}
	if c.FrameLimit <= 0 {
		c.FrameLimit = d.FrameLimit
	}
	return c
}

// Machine executes a compiled program against a console, an audio device
// and a file system. It is single-threaded and cooperative: device
// completions re-enter through Resume, never mid-instruction.
type Machine struct {
	ID  uuid.UUID
	log commonlog.Logger

	prog  *bytecode.Program
	types map[string]*RecordType
	cfg   Config

	console Console
	audio   Audio
	fs      FileSystem

	mu      sync.Mutex
	stack   []Value
	frames  []*Frame
	pc      int
	dataPtr int
	halted  bool

	// Suspension state is atomic so device completions may call Resume
	// from any goroutine, including synchronously inside a syscall while
	// the execution lock is held.
	suspended atomic.Bool
	yielding  atomic.Bool

	files map[int]File
	rng   *rand.Rand

	onError func(*RuntimeError)

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a machine for a program. Devices may be nil when the program
// never touches them; a nil device fault surfaces as a runtime error.
func New(prog *bytecode.Program, cfg Config, console Console, audio Audio, fs FileSystem) *Machine {
	m := &Machine{
		ID:      uuid.New(),
		log:     commonlog.GetLogger("qbvm.vm"),
		prog:    prog,
		types:   MaterializeTypes(prog.Types),
		cfg:     cfg.withDefaults(),
		console: console,
		audio:   audio,
		fs:      fs,
		// The generator starts from a fixed seed; RANDOMIZE is a stub
		// and RND(n) with a negative argument reseeds explicitly.
		rng: rand.New(rand.NewSource(1)),
	}
	m.reset()
	return m
}

// OnError registers the handler for the machine's error event. The
// handler runs on the goroutine that raised the error, after the machine
// has suspended.
func (m *Machine) OnError(handler func(*RuntimeError)) {
	m.onError = handler
}

// Program returns the program the machine executes.
func (m *Machine) Program() *bytecode.Program { return m.prog }

// TestMode reports whether blocking syscalls complete immediately.
func (m *Machine) TestMode() bool { return m.prog.TestMode }

func (m *Machine) reset() {
	m.stack = m.stack[:0]
	m.frames = []*Frame{newRootFrame()}
	m.pc = 0
	m.dataPtr = 0
	m.suspended.Store(false)
	m.yielding.Store(false)
	m.halted = false
	m.files = make(map[int]File)
}

// Reset halts any running program, drains the stacks and reinitializes
// the main frame. Outstanding device completions are ignored.
func (m *Machine) Reset(prog *bytecode.Program) {
	m.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if prog != nil {
		m.prog = prog
		m.types = MaterializeTypes(prog.Types)
	}
	m.reset()
}

// ----- stacks ----------------------------------------------------------------

func (m *Machine) push(v Value) error {
	if len(m.stack) >= m.cfg.StackLimit {
		return faultCode(ErrStackOverflow, "operand stack exceeds %d values", m.cfg.StackLimit)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *Machine) pop() (Value, error) {
	if len(m.stack) == 0 {
		return Value{}, faultCode(ErrStackUnderflow, "operand stack is empty")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) peekTop() (Value, error) {
	if len(m.stack) == 0 {
		return Value{}, faultCode(ErrStackUnderflow, "operand stack is empty")
	}
	return m.stack[len(m.stack)-1], nil
}

// StackDepth reports the operand stack depth; loop lowering keeps it at
// zero between statements.
func (m *Machine) StackDepth() int { return len(m.stack) }

// FrameDepth reports the call stack depth, 1 when only the main frame
// remains.
func (m *Machine) FrameDepth() int { return len(m.frames) }

// DataPtr reports the DATA pool read position.
func (m *Machine) DataPtr() int { return m.dataPtr }

func (m *Machine) top() *Frame { return m.frames[len(m.frames)-1] }

// ----- suspension -------------------------------------------------------------

// suspend marks the machine awaiting an external completion.
func (m *Machine) suspend() {
	m.suspended.Store(true)
}

// Resume clears the suspension; the scheduler picks execution back up on
// its next tick. Safe to call from device callbacks on any goroutine,
// including synchronously inside the suspending syscall.
func (m *Machine) Resume() {
	m.suspended.Store(false)
	m.yielding.Store(false)
}

// Suspended reports whether the machine awaits an external completion.
func (m *Machine) Suspended() bool {
	return m.suspended.Load()
}

// Halted reports whether the program ran to completion.
func (m *Machine) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// ----- execution ---------------------------------------------------------------

// step executes one instruction. The caller holds the lock.
func (m *Machine) step() *RuntimeError {
	if m.pc >= len(m.prog.Instructions) {
		m.halted = true
		return nil
	}
	in := m.prog.Instructions[m.pc]
	m.pc++

	if err := m.execute(in); err != nil {
		re := asRuntime(err)
		if re.Locus == "" {
			re.Locus = in.Locus.String()
		}
		return re
	}
	return nil
}

// raise surfaces a runtime error: log it, suspend, and fire the error
// event. The host decides whether to reset.
func (m *Machine) raise(re *RuntimeError) {
	re.Machine = m.ID
	m.log.Errorf("[%s] %s", m.ID, re.Error())
	m.suspended.Store(true)
	if m.onError != nil {
		m.onError(re)
	}
}

// Run executes synchronously until the program halts. A runtime error is
// surfaced as the error event and returned. Programs that suspend on a
// device that does not complete synchronously cannot run in this mode.
func (m *Machine) Run() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.halted {
		if err := m.step(); err != nil {
			m.raise(err)
			return err
		}
		if m.suspended.Load() {
			re := fault("suspended in synchronous mode")
			m.raise(re)
			return re
		}
	}
	return nil
}

// Start launches the cooperative scheduler: every tick it runs a bounded
// quantum of instructions, stopping early on suspension. Stop or a halt
// ends the loop; Wait blocks until then.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.schedule(m.stopCh, m.doneCh)
}

func (m *Machine) schedule(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if done := m.tick(); done {
				return
			}
		}
	}
}

// tick runs one scheduler quantum; reports whether the program halted.
func (m *Machine) tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.yielding.Load() {
		// YIELD resumes by itself on the next tick.
		m.yielding.Store(false)
		m.suspended.Store(false)
	}
	if m.suspended.Load() {
		return false
	}

	for i := 0; i < m.cfg.Quantum; i++ {
		if m.halted {
			return true
		}
		if err := m.step(); err != nil {
			m.raise(err)
			return false
		}
		if m.suspended.Load() {
			return false
		}
	}
	return m.halted
}

// Stop ends the scheduler without touching machine state.
func (m *Machine) Stop() {
	m.mu.Lock()
	running := m.running
	stopCh := m.stopCh
	m.running = false
	m.mu.Unlock()
	if running {
		close(stopCh)
		<-m.doneCh
	}
}

// Wait blocks until the scheduled program halts or is stopped.
func (m *Machine) Wait() {
	m.mu.Lock()
	doneCh := m.doneCh
	m.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}
