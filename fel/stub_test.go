package fel

import (
	"errors"
	"fmt"
)

// stubDevice is an in-memory stand-in for a USB bulk endpoint pair. Each
// entry in reads is returned whole by one call to Read; Write records
// everything sent to it. Grounded on the loopback TCP server
// comm_test.go uses to exercise comm.Pool without real hardware.
type stubDevice struct {
	writes [][]byte
	reads  [][]byte
}

func (s *stubDevice) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	s.writes = append(s.writes, cp)
	return len(p), nil
}

func (s *stubDevice) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, errors.New("stubDevice: no more queued reads")
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	if len(next) > len(p) {
		return 0, fmt.Errorf("stubDevice: queued frame of %d bytes exceeds read buffer of %d", len(next), len(p))
	}
	copy(p, next)
	return len(next), nil
}

func csw() []byte {
	r := awUSBResponse{}
	copy(r.magic[:], awUSBResponseMagic)
	buf := make([]byte, 13)
	copy(buf[0:4], r.magic[:])
	return buf
}

func statusOK() []byte {
	buf := make([]byte, 8)
	// mark/tag left zero; state (offset 4) == 0 means success.
	return buf
}

func statusFail(state byte) []byte {
	buf := make([]byte, 8)
	buf[4] = state
	return buf
}

func newStubSession(reads [][]byte) (*Session, *stubDevice) {
	dev := &stubDevice{reads: reads}
	s := &Session{
		transport: NewTransport(dev, dev),
		reporter:  noopReporter,
	}
	return s, dev
}
