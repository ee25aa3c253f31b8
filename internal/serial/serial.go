// Package serial provides the byte-oriented output surface the original
// PTL project's uart.c/uart.h exposed to the print routines. In this
// implementation it is a thin wrapper over an io.Writer rather than a
// UART peripheral, used only by the human-readable dump routines and
// never on any real-time scheduling path.
package serial

import (
	"io"
	"os"
	"sync"
)

// Port is a serialized byte sink, safe for concurrent Write calls the way
// the original UART_printf was safe to call from multiple tasks.
type Port struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPort wraps w as a serial-style output port.
func NewPort(w io.Writer) *Port {
	return &Port{w: w}
}

// Stdout returns a Port writing to the process's standard output, the
// default target for print routines when no other collaborator is wired.
func Stdout() *Port {
	return NewPort(os.Stdout)
}

// Write passes b through to the underlying writer, serialized against
// concurrent writers.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Write(b)
}
