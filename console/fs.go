package console

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/qbvm/qbvm/vm"
)

// OSFileSystem opens channels against the host file system.
type OSFileSystem struct{}

// NewFileSystem builds the device.
func NewFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (OSFileSystem) Open(name, mode string) (vm.File, error) {
	switch mode {
	case "INPUT":
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &osFile{f: f, r: bufio.NewReader(f)}, nil
	case "OUTPUT":
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return &osFile{f: f, w: bufio.NewWriter(f)}, nil
	case "APPEND":
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &osFile{f: f, w: bufio.NewWriter(f)}, nil
	}
	return nil, fmt.Errorf("unknown file mode %s", mode)
}

type osFile struct {
	f   *os.File
	r   *bufio.Reader
	w   *bufio.Writer
	eof bool
}

func (o *osFile) ReadLine() (string, error) {
	if o.r == nil {
		return "", fmt.Errorf("file is not open for INPUT")
	}
	line, err := o.r.ReadString('\n')
	if err == io.EOF {
		o.eof = true
		if line == "" {
			return "", fmt.Errorf("read past end of file")
		}
		return line, nil
	}
	if err != nil {
		return "", err
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if _, peekErr := o.r.Peek(1); peekErr == io.EOF {
		o.eof = true
	}
	return line, nil
}

func (o *osFile) WriteLine(text string) error {
	if o.w == nil {
		return fmt.Errorf("file is not open for OUTPUT")
	}
	if _, err := o.w.WriteString(text + "\n"); err != nil {
		return err
	}
	return o.w.Flush()
}

func (o *osFile) AtEOF() bool {
	if o.r == nil {
		return true
	}
	if !o.eof {
		if _, err := o.r.Peek(1); err == io.EOF {
			o.eof = true
		}
	}
	return o.eof
}

func (o *osFile) Close() error {
	if o.w != nil {
		o.w.Flush()
	}
	return o.f.Close()
}
