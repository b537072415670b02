package report

import (
	"os"
	"runtime"
)

// callersFrames is indirected for tests that feed synthetic PCs.
var callersFrames = func(pcs []uintptr) *runtime.Frames {
	return runtime.CallersFrames(pcs)
}

// TracePrinter writes raw stack traces without allocating.
//
// The fatal-signal handler cannot call fmt (interface boxing allocates) or
// acquire the locks a buffered logger would take, so it formats return
// addresses into a buffer owned by the printer and hands the bytes straight
// to the destination's file descriptor. One printer is created at signal
// install time and reused for every delivery.
type TracePrinter struct {
	buf [4096]byte
	n   int
}

// NewTracePrinter returns a printer with its buffer preallocated.
func NewTracePrinter() *TracePrinter {
	return &TracePrinter{}
}

// PrintRaw writes "  #i 0xADDR" lines for each program counter.
//
// No heap allocation, no locks. The destination is the current report sink
// when it is backed by a file descriptor, else stderr.
func (p *TracePrinter) PrintRaw(header string, pcs []uintptr) {
	p.n = 0
	p.appendString(header)
	p.appendString("\n")
	for i, pc := range pcs {
		p.appendString("  #")
		p.appendUint(uint64(i))
		p.appendString(" 0x")
		p.appendHex(uint64(pc))
		p.appendString("\n")
	}
	p.flush()
}

func (p *TracePrinter) appendString(s string) {
	for i := 0; i < len(s) && p.n < len(p.buf); i++ {
		p.buf[p.n] = s[i]
		p.n++
	}
}

func (p *TracePrinter) appendUint(v uint64) {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	for ; i < len(tmp) && p.n < len(p.buf); i++ {
		p.buf[p.n] = tmp[i]
		p.n++
	}
}

func (p *TracePrinter) appendHex(v uint64) {
	const digits = "0123456789abcdef"
	var tmp [16]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = digits[v&0xf]
		v >>= 4
		if v == 0 {
			break
		}
	}
	for ; i < len(tmp) && p.n < len(p.buf); i++ {
		p.buf[p.n] = tmp[i]
		p.n++
	}
}

// flush hands the buffer to the destination in a single write.
//
// *os.File writes go straight to the descriptor without buffering, which is
// what the signal path needs; other writers are test sinks.
func (p *TracePrinter) flush() {
	s := output.Load()
	if f, ok := s.w.(*os.File); ok {
		_, _ = f.Write(p.buf[:p.n])
		return
	}
	_, _ = s.w.Write(p.buf[:p.n])
}
