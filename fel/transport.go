package fel

import (
	"sync/atomic"
	"time"
)

// bulkReader and bulkWriter are the seams Transport needs from a USB bulk
// endpoint pair. *gousb.InEndpoint and *gousb.OutEndpoint satisfy these
// directly; tests substitute an in-memory stub.
type bulkReader interface {
	Read(p []byte) (int, error)
}

type bulkWriter interface {
	Write(p []byte) (int, error)
}

const (
	// defaultTimeout bounds ordinary bulk transfers.
	defaultTimeout = 5 * time.Second
	// statusTimeout bounds the read of the closing envelope after a
	// write leg. Operations like NAND format are slow on-device, so this
	// is intentionally long.
	statusTimeout = 60 * time.Second
	// maxStrayPackets bounds how many spurious short packets the
	// resynchronization rule will discard before giving up.
	maxStrayPackets = 8
)

// Transport performs the three-leg BBB-like bulk transaction that underlies
// every FEL/FES logical command: send AWUSBRequest, send or receive the
// payload leg, receive the 13-byte AWUSBResponse (CSW).
//
// Grounded on usbtmc.USBDevice's Read/Write pair and adapted from
// comm2.go's Timeout wrapper for the bounded-wait read.
type Transport struct {
	in  bulkReader
	out bulkWriter

	tag uint32
}

// NewTransport builds a Transport over an already-opened endpoint pair.
func NewTransport(in bulkReader, out bulkWriter) *Transport {
	return &Transport{in: in, out: out}
}

func (t *Transport) nextTag() uint32 {
	return atomic.AddUint32(&t.tag, 1)
}

// readWithTimeout performs a single bulk-in read, failing with ErrUSB if it
// does not complete within timeout. It races the underlying Read against a
// timer the way comm2.Timeout races an io.Reader.
func (t *Transport) readWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := t.in.Read(buf)
		ch <- result{n, err}
	}()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, newErr(ErrUSB, "bulk-in", 0, errTimedOut)
	}
}

// readExact reads exactly n bytes from the in endpoint, applying the
// resynchronization rule: if n is not itself 13 or 8 (the envelope/status
// sizes) and an intermediate read yields exactly one of those sizes while
// more data is still expected, the packet is treated as a stray
// envelope/status and discarded, then the read is reissued.
func (t *Transport) readExact(n int, timeout time.Duration) ([]byte, error) {
	out := make([]byte, 0, n)
	strays := 0
	for len(out) < n {
		remaining := n - len(out)
		buf := make([]byte, remaining)
		got, err := t.readWithTimeout(buf, timeout)
		if err != nil {
			return out, err
		}
		if got == 0 {
			continue
		}
		if n != 13 && n != 8 && got < remaining && (got == 13 || got == 8) {
			strays++
			if strays > maxStrayPackets {
				return out, newErr(ErrTransportShort, "readExact", len(out), nil)
			}
			continue
		}
		out = append(out, buf[:got]...)
	}
	return out, nil
}

// writeAll writes the entirety of b to the out endpoint, looping on short
// writes the way a BBB host must.
func (t *Transport) writeAll(b []byte) error {
	for len(b) > 0 {
		n, err := t.out.Write(b)
		if err != nil {
			return newErr(ErrUSB, "bulk-out", 0, err)
		}
		if n == 0 {
			return newErr(ErrUSB, "bulk-out", 0, errShortWrite)
		}
		b = b[n:]
	}
	return nil
}

// writeShape performs the host-to-device leg: send an AWUSBRequest with
// cmd=USB_WRITE and the payload length, send the payload, then receive and
// validate the 13-byte AWUSBResponse.
func (t *Transport) writeShape(payload []byte) error {
	req := newUSBRequest(usbCmdWrite, uint32(len(payload)))
	req.tag = t.nextTag()
	if err := t.writeAll(req.encode()); err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := t.writeAll(payload); err != nil {
			return err
		}
	}
	csw, err := t.readExact(13, statusTimeout)
	if err != nil {
		return err
	}
	resp, err := decodeUSBResponse(csw)
	if err != nil {
		return newErr(ErrBadEnvelope, "writeShape", 0, err)
	}
	if !resp.ok() {
		return newErr(ErrBadEnvelope, "writeShape", 0, nil)
	}
	return nil
}

// readShape performs the device-to-host leg: send an AWUSBRequest with
// cmd=USB_READ and the expected length, receive that many payload bytes
// (applying the resynchronization rule), then receive and validate the
// 13-byte AWUSBResponse.
func (t *Transport) readShape(n int) ([]byte, error) {
	req := newUSBRequest(usbCmdRead, uint32(n))
	req.tag = t.nextTag()
	if err := t.writeAll(req.encode()); err != nil {
		return nil, err
	}
	payload, err := t.readExact(n, defaultTimeout)
	if err != nil {
		return nil, err
	}
	csw, err := t.readExact(13, defaultTimeout)
	if err != nil {
		return nil, err
	}
	resp, err := decodeUSBResponse(csw)
	if err != nil {
		return nil, newErr(ErrBadEnvelope, "readShape", len(payload), err)
	}
	if !resp.ok() {
		return nil, newErr(ErrBadEnvelope, "readShape", len(payload), nil)
	}
	return payload, nil
}
