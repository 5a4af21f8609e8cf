package fel

// DeviceInfo sends VERIFY_DEVICE and returns the decoded device identity.
// Fails if state != 0 or either read comes back short.
func (s *Session) DeviceInfo() (VerifyDeviceResponse, error) {
	req := awFELStandardRequest{cmd: felVerifyDevice}
	if err := s.transport.writeShape(req.encode()); err != nil {
		return VerifyDeviceResponse{}, err
	}
	payload, err := s.transport.readShape(32)
	if err != nil {
		return VerifyDeviceResponse{}, err
	}
	vdr, err := decodeVerifyDeviceResponse(payload)
	if err != nil {
		return VerifyDeviceResponse{}, newErr(ErrBadEnvelope, "DeviceInfo", 0, err)
	}
	status, err := s.readStatus()
	if err != nil {
		return VerifyDeviceResponse{}, err
	}
	if status.state != 0 {
		return VerifyDeviceResponse{}, newErr(ErrCommandFailed, "DeviceInfo", 32, nil)
	}
	return vdr, nil
}

// readStatus fetches the 8-byte AWFELStatusResponse that closes a logical
// command.
func (s *Session) readStatus() (awFELStatusResponse, error) {
	buf, err := s.transport.readShape(8)
	if err != nil {
		return awFELStatusResponse{}, err
	}
	return decodeFELStatusResponse(buf)
}

func uploadCmd(mode Mode) uint16 {
	if mode == ModeFEL {
		return felUpload
	}
	return fesUpload
}

func downloadCmd(mode Mode) uint16 {
	if mode == ModeFEL {
		return felDownload
	}
	return fesDownload
}

func runCmd(mode Mode) uint16 {
	if mode == ModeFEL {
		return felRun
	}
	return fesRun
}

// Read uploads length bytes from address on the device into the returned
// slice, looping in MaxChunk-sized pieces and stepping address after each
// one. The reporter, if set via WithReporter, is invoked after each chunk.
func (s *Session) Read(address uint32, length int, tags Tag, mode Mode) ([]byte, error) {
	if length < 0 {
		return nil, newErr(ErrBadArgument, "Read", 0, nil)
	}
	out := make([]byte, 0, length)
	addr := address
	flags := uint32(OrTags(tags))
	for _, c := range chunksFor(length) {
		msg := awFELMessage{
			cmd:     uploadCmd(mode),
			address: addr,
			length:  uint32(c.length),
			flags:   flags,
		}
		if err := s.transport.writeShape(msg.encode()); err != nil {
			return out, err
		}
		payload, err := s.transport.readShape(c.length)
		if err != nil {
			return out, err
		}
		out = append(out, payload...)
		status, err := s.readStatus()
		if err != nil {
			return out, err
		}
		if status.state != 0 {
			return out, newErr(ErrCommandFailed, "Read", len(out), nil)
		}
		addr = stepAddress(addr, c.length, tags, mode)
		s.reporter("read", len(out), length)
	}
	return out, nil
}

// Write downloads payload to address on the device, looping in
// MaxChunk-sized pieces and stepping address after each one.
func (s *Session) Write(address uint32, payload []byte, tags Tag, mode Mode) error {
	addr := address
	flags := uint32(OrTags(tags))
	done := 0
	for _, c := range chunksFor(len(payload)) {
		msg := awFELMessage{
			cmd:     downloadCmd(mode),
			address: addr,
			length:  uint32(c.length),
			flags:   flags,
		}
		if err := s.transport.writeShape(msg.encode()); err != nil {
			return err
		}
		chunkData := payload[c.offset : c.offset+c.length]
		if err := s.transport.writeShape(chunkData); err != nil {
			return err
		}
		status, err := s.readStatus()
		if err != nil {
			return err
		}
		if status.state != 0 {
			return newErr(ErrCommandFailed, "Write", done, nil)
		}
		done += c.length
		addr = stepAddress(addr, c.length, tags, mode)
		s.reporter("write", done, len(payload))
	}
	return nil
}

// Run executes code at address. Control returns to the caller before the
// device-side code observably completes; subsequent operations must follow
// the protocol that code implements.
func (s *Session) Run(address uint32, mode Mode) error {
	msg := awFELMessage{cmd: runCmd(mode), address: address}
	if err := s.transport.writeShape(msg.encode()); err != nil {
		return err
	}
	status, err := s.readStatus()
	if err != nil {
		return err
	}
	if status.state != 0 {
		return newErr(ErrCommandFailed, "Run", 0, nil)
	}
	return nil
}

// VerifyStatus is FES-only. It sends FES_VERIFY_STATUS with the given tags
// and returns the decoded 12-byte response.
func (s *Session) VerifyStatus(tags Tag) (VerifyStatusResponse, error) {
	msg := awFELMessage{cmd: fesVerifyStatus, flags: uint32(OrTags(tags))}
	if err := s.transport.writeShape(msg.encode()); err != nil {
		return VerifyStatusResponse{}, err
	}
	payload, err := s.transport.readShape(12)
	if err != nil {
		return VerifyStatusResponse{}, err
	}
	vsr, err := decodeVerifyStatusResponse(payload)
	if err != nil {
		return VerifyStatusResponse{}, newErr(ErrBadEnvelope, "VerifyStatus", 0, err)
	}
	status, err := s.readStatus()
	if err != nil {
		return VerifyStatusResponse{}, err
	}
	if status.state != 0 {
		return VerifyStatusResponse{}, newErr(ErrCommandFailed, "VerifyStatus", 12, nil)
	}
	return vsr, nil
}

// SetStorageState is FES-only. It toggles the NAND/eMMC storage driver on
// or off.
func (s *Session) SetStorageState(on bool) error {
	cmd := fesFlashSetOff
	if on {
		cmd = fesFlashSetOn
	}
	req := awFELStandardRequest{cmd: cmd}
	if err := s.transport.writeShape(req.encode()); err != nil {
		return err
	}
	status, err := s.readStatus()
	if err != nil {
		return err
	}
	if status.state != 0 {
		return newErr(ErrCommandFailed, "SetStorageState", 0, nil)
	}
	return nil
}

// WriteMBR programs the sunxi MBR. It is FES-only and a three-step
// composite: set the platform erase flag, transfer the MBR image, then
// verify via VerifyStatus. mbr must be exactly 65536 bytes.
func (s *Session) WriteMBR(mbr []byte, erase bool) (VerifyStatusResponse, error) {
	if len(mbr) != mbrSize {
		return VerifyStatusResponse{}, newErr(ErrBadArgument, "WriteMBR", 0, nil)
	}
	// Local pre-flight sanity check only; the device's own CRC in the
	// verify-status response remains authoritative. Surfaced through the
	// reporter so a --verbose caller can compare it against a known-good
	// image checksum before the transfer goes out.
	checksum := localMBRChecksum(mbr)
	s.reporter("mbr-local-crc", int(checksum), mbrSize)

	eraseFlag := []byte{0, 0, 0, 0}
	if erase {
		eraseFlag = []byte{0x01, 0, 0, 0}
	}
	if err := s.Write(0, eraseFlag, OrTags(TagErase, TagFinish), ModeFES); err != nil {
		return VerifyStatusResponse{}, err
	}
	if err := s.Write(0, mbr, OrTags(TagMBR, TagFinish), ModeFES); err != nil {
		return VerifyStatusResponse{}, err
	}
	vsr, err := s.VerifyStatus(TagMBR)
	if err != nil {
		return VerifyStatusResponse{}, err
	}
	if vsr.CRC != 0 {
		return vsr, newErr(ErrVerifyFailed, "WriteMBR", mbrSize, nil)
	}
	return vsr, nil
}

// TransmiteRead performs a low-level FES transmite read (RW_TRANSMITE,
// direction=upload) of length bytes at address on the given media.
// Uploads are bounded to one MaxChunk-sized transfer; a longer request is
// a BadArgument error, not a silent truncation.
//
// TODO: whether larger transmite uploads should chunk with sector-stepping
// like Read is left unspecified by the source protocol; revisit if a
// device is found that needs it.
func (s *Session) TransmiteRead(address uint32, length int, media MediaIndex) ([]byte, error) {
	if length < 0 || length > MaxChunk {
		return nil, newErr(ErrBadArgument, "TransmiteRead", 0, nil)
	}
	req := awFELFESTransportRequest{
		cmd:        fesRWTransmite,
		address:    address,
		length:     uint32(length),
		mediaIndex: byte(media),
		direction:  byte(transmiteUpload),
	}
	if err := s.transport.writeShape(req.encode()); err != nil {
		return nil, err
	}
	payload, err := s.transport.readShape(length)
	if err != nil {
		return nil, err
	}
	status, err := s.readStatus()
	if err != nil {
		return payload, err
	}
	if status.state != 0 {
		return payload, newErr(ErrCommandFailed, "TransmiteRead", len(payload), nil)
	}
	return payload, nil
}

// DebugRequest sends a bare AWFELStandardRequest built from opcode, reads
// back a fixed-length reply, and then reads the trailing
// AWFELStatusResponse that closes it. It exists for interactive probing of
// opcodes this package does not otherwise expose a typed helper for.
//
// The parsed status is checked directly: status.state, not some other
// variable, decides whether this returns ErrCommandFailed.
func (s *Session) DebugRequest(opcode uint16, replyLength int) ([]byte, error) {
	req := awFELStandardRequest{cmd: opcode}
	if err := s.transport.writeShape(req.encode()); err != nil {
		return nil, err
	}
	var reply []byte
	if replyLength > 0 {
		var err error
		reply, err = s.transport.readShape(replyLength)
		if err != nil {
			return nil, err
		}
	}
	status, err := s.readStatus()
	if err != nil {
		return reply, err
	}
	if status.state != 0 {
		return reply, newErr(ErrCommandFailed, "DebugRequest", len(reply), nil)
	}
	return reply, nil
}

// TransmiteWrite performs a low-level FES transmite write (RW_TRANSMITE,
// direction=download) of payload to address on the given media, chunking
// with sector-stepping as Write does.
func (s *Session) TransmiteWrite(address uint32, payload []byte, media MediaIndex) error {
	addr := address
	done := 0
	for _, c := range chunksFor(len(payload)) {
		req := awFELFESTransportRequest{
			cmd:        fesRWTransmite,
			address:    addr,
			length:     uint32(c.length),
			mediaIndex: byte(media),
			direction:  byte(transmiteDownload),
		}
		if err := s.transport.writeShape(req.encode()); err != nil {
			return err
		}
		chunkData := payload[c.offset : c.offset+c.length]
		if err := s.transport.writeShape(chunkData); err != nil {
			return err
		}
		status, err := s.readStatus()
		if err != nil {
			return err
		}
		if status.state != 0 {
			return newErr(ErrCommandFailed, "TransmiteWrite", done, nil)
		}
		done += c.length
		addr = stepAddress(addr, c.length, TagNone, ModeFES)
		s.reporter("transmite-write", done, len(payload))
	}
	return nil
}
