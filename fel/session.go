package fel

import (
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"
)

// Session owns one USB device exclusively for its lifetime: the opened
// gousb.Device, the claimed interface 0, and the first bulk IN / bulk OUT
// endpoint pair discovered on it. No sharing across goroutines; no internal
// locking, concurrent access to a single Session is undefined and must be
// prevented by the caller.
type Session struct {
	ctx    *gousb.Context
	device *gousb.Device
	iface  *gousb.Interface
	done   func()

	transport *Transport
	reporter  Reporter
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	reporter    Reporter
	openRetries bool
}

// WithReporter sets the progress callback a Session invokes after each
// chunk of a multi-chunk operation. The default is a no-op.
func WithReporter(r Reporter) Option {
	return func(c *openConfig) { c.reporter = r }
}

// WithOpenRetry enables an exponential-backoff retry loop around device
// open/claim, for devices caught mid-enumeration. Grounded on
// comm.RemoteDevice.Open's use of backoff.Retry.
func WithOpenRetry(enabled bool) Option {
	return func(c *openConfig) { c.openRetries = enabled }
}

// Open finds the first USB device matching vendor 0x1f3a / product 0xefe8,
// claims interface 0, and locates its first bulk IN and bulk OUT endpoints.
func Open(opts ...Option) (*Session, error) {
	cfg := openConfig{reporter: noopReporter}
	for _, o := range opts {
		o(&cfg)
	}

	s := &Session{ctx: gousb.NewContext(), reporter: cfg.reporter}

	var err error
	open := func() error {
		err = s.open()
		return err
	}
	if cfg.openRetries {
		boff := &backoff.ExponentialBackOff{
			InitialInterval:     50 * time.Millisecond,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      5 * time.Second,
			Clock:               backoff.SystemClock,
		}
		_ = backoff.Retry(open, boff)
	} else {
		_ = open()
	}
	if err != nil {
		s.ctx.Close()
		return nil, newErr(ErrUSB, "Open", 0, err)
	}
	return s, nil
}

func (s *Session) open() error {
	device, err := s.ctx.OpenDeviceWithVIDPID(gousb.ID(usbVendorID), gousb.ID(usbProductID))
	if err != nil {
		return err
	}
	if device == nil {
		return errDeviceNotFound
	}
	if err := device.SetAutoDetach(true); err != nil {
		device.Close()
		return err
	}
	iface, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		return err
	}
	in, err := firstInEndpoint(iface)
	if err != nil {
		done()
		device.Close()
		return err
	}
	out, err := firstOutEndpoint(iface)
	if err != nil {
		done()
		device.Close()
		return err
	}

	s.device = device
	s.iface = iface
	s.done = done
	s.transport = NewTransport(in, out)
	return nil
}

func firstInEndpoint(iface *gousb.Interface) (*gousb.InEndpoint, error) {
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn && ep.TransferType == gousb.TransferTypeBulk {
			return iface.InEndpoint(ep.Number)
		}
	}
	return nil, errNoBulkIn
}

func firstOutEndpoint(iface *gousb.Interface) (*gousb.OutEndpoint, error) {
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			return iface.OutEndpoint(ep.Number)
		}
	}
	return nil, errNoBulkOut
}

// Close releases interface 0, closes the device handle and the USB context.
// It is safe to call more than once. Open does not call it: a failed Open
// releases what it acquired itself and returns no Session.
func (s *Session) Close() error {
	if s.done != nil {
		s.done()
		s.done = nil
	}
	var err error
	if s.device != nil {
		err = s.device.Close()
		s.device = nil
	}
	if s.ctx != nil {
		s.ctx.Close()
		s.ctx = nil
	}
	return err
}
