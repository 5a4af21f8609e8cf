package fel

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func verifyDeviceResponseBytes(board, fw uint32, mode uint16, dataStart uint32) []byte {
	buf := make([]byte, 32)
	copy(buf[0:8], awFELVerifyMagic)
	binary.LittleEndian.PutUint32(buf[8:12], board)
	binary.LittleEndian.PutUint32(buf[12:16], fw)
	binary.LittleEndian.PutUint16(buf[16:18], mode)
	buf[18] = 0
	buf[19] = 0
	binary.LittleEndian.PutUint32(buf[20:24], dataStart)
	return buf
}

// verify device.
func TestDeviceInfo(t *testing.T) {
	reads := [][]byte{
		csw(),
		verifyDeviceResponseBytes(0x00162300, 1, 0, 0x7E00),
		csw(),
		statusOK(),
		csw(),
	}
	s, _ := newStubSession(reads)

	vdr, err := s.DeviceInfo()
	if err != nil {
		t.Fatalf("DeviceInfo: %v", err)
	}
	if vdr.Board != 0x00162300 || vdr.Firmware != 1 || vdr.Mode != ModeFEL || vdr.DataStartAddress != 0x7E00 {
		t.Fatalf("unexpected VerifyDeviceResponse: %+v", vdr)
	}
}

// Scenario 2: read 100 bytes from DRAM in FEL.
func TestReadDRAMFEL(t *testing.T) {
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	reads := [][]byte{
		csw(),
		payload,
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	got, err := s.Read(0x40100000, 100, OrTags(TagNone), ModeFEL)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v want %v", got, payload)
	}

	// writes[0] is the write-shape's 32-byte AWUSBRequest header;
	// writes[1] is its 16-byte AWFELMessage payload.
	msg, err := decodeFELMessage(dev.writes[1])
	if err != nil {
		t.Fatalf("decodeFELMessage: %v", err)
	}
	if msg.cmd != felUpload || msg.address != 0x40100000 || msg.length != 100 || msg.flags != 0 {
		t.Fatalf("unexpected request message: %+v", msg)
	}
}

// Scenario 6: command failure on RUN.
func TestRunCommandFailed(t *testing.T) {
	reads := [][]byte{
		csw(),
		statusFail(1),
		csw(),
	}
	s, _ := newStubSession(reads)

	err := s.Run(0x40100000, ModeFEL)
	if err == nil {
		t.Fatal("expected CommandFailed error, got nil")
	}
	felErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if felErr.Kind != ErrCommandFailed {
		t.Fatalf("expected ErrCommandFailed, got %v", felErr.Kind)
	}
}

// Scenario 4: MBR program.
func TestWriteMBR(t *testing.T) {
	mbr := make([]byte, mbrSize)
	for i := range mbr {
		mbr[i] = byte(i % 251)
	}

	reads := [][]byte{
		// erase-flag write: two write-shapes then a status leg
		csw(), csw(), statusOK(), csw(),
		// MBR image write: two write-shapes then a status leg
		csw(), csw(), statusOK(), csw(),
		// VerifyStatus
		csw(),
		verifyStatusResponseBytes(fesVerifyStatusMagic, 0, 0),
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	vsr, err := s.WriteMBR(mbr, true)
	if err != nil {
		t.Fatalf("WriteMBR: %v", err)
	}
	if vsr.CRC != 0 {
		t.Fatalf("expected CRC 0, got %d", vsr.CRC)
	}

	// writes[1] is the 16-byte erase-flag command record; writes[3] is
	// the 4-byte erase flag payload chunk.
	eraseMsg, err := decodeFELMessage(dev.writes[1])
	if err != nil {
		t.Fatalf("decodeFELMessage: %v", err)
	}
	if !Tag(eraseMsg.flags).Has(TagErase) || !Tag(eraseMsg.flags).Has(TagFinish) {
		t.Fatalf("expected erase|finish flags, got %#x", eraseMsg.flags)
	}
	if !bytes.Equal(dev.writes[3], []byte{0x01, 0, 0, 0}) {
		t.Fatalf("expected erase flag payload 01 00 00 00, got %v", dev.writes[3])
	}
}

func verifyStatusResponseBytes(flags, crc uint32, lastError int32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], flags)
	binary.LittleEndian.PutUint32(buf[4:8], crc)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(lastError))
	return buf
}

// Scenario 7: toggle storage on.
func TestSetStorageState(t *testing.T) {
	reads := [][]byte{
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	if err := s.SetStorageState(true); err != nil {
		t.Fatalf("SetStorageState: %v", err)
	}

	req, err := decodeFELMessage(dev.writes[1])
	if err != nil {
		t.Fatalf("decodeFELMessage: %v", err)
	}
	if req.cmd != fesFlashSetOn {
		t.Fatalf("expected fesFlashSetOn, got %#x", req.cmd)
	}
}

// Scenario 8: FES verify-status queried directly, independent of WriteMBR.
func TestVerifyStatus(t *testing.T) {
	reads := [][]byte{
		csw(),
		verifyStatusResponseBytes(fesVerifyStatusMagic, 7, 0),
		csw(),
		statusOK(),
		csw(),
	}
	s, _ := newStubSession(reads)

	vsr, err := s.VerifyStatus(TagMBR)
	if err != nil {
		t.Fatalf("VerifyStatus: %v", err)
	}
	if vsr.Flags != fesVerifyStatusMagic || vsr.CRC != 7 {
		t.Fatalf("unexpected VerifyStatusResponse: %+v", vsr)
	}
}

// Scenario 9: low-level transmite read from DRAM succeeds.
func TestTransmiteReadSuccess(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	reads := [][]byte{
		csw(),
		payload,
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	got, err := s.TransmiteRead(0x41000000, 64, MediaDRAM)
	if err != nil {
		t.Fatalf("TransmiteRead: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v want %v", got, payload)
	}

	req, err := decodeFELFESTransportRequest(dev.writes[1])
	if err != nil {
		t.Fatalf("decodeFELFESTransportRequest: %v", err)
	}
	if req.cmd != fesRWTransmite || req.direction != byte(transmiteUpload) || req.mediaIndex != byte(MediaDRAM) {
		t.Fatalf("unexpected transport request: %+v", req)
	}
}

// Scenario 10: low-level transmite write to physical storage.
func TestTransmiteWrite(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	reads := [][]byte{
		csw(),
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	if err := s.TransmiteWrite(0x42000000, payload, MediaPhysical); err != nil {
		t.Fatalf("TransmiteWrite: %v", err)
	}

	req, err := decodeFELFESTransportRequest(dev.writes[1])
	if err != nil {
		t.Fatalf("decodeFELFESTransportRequest: %v", err)
	}
	if req.cmd != fesRWTransmite || req.direction != byte(transmiteDownload) || req.mediaIndex != byte(MediaPhysical) {
		t.Fatalf("unexpected transport request: %+v", req)
	}
	if !bytes.Equal(dev.writes[3], payload) {
		t.Fatalf("expected chunk payload %v, got %v", payload, dev.writes[3])
	}
}

// Scenario 11: raw debug request with a non-zero reply length.
func TestDebugRequest(t *testing.T) {
	reply := []byte{0xde, 0xad, 0xbe, 0xef}
	reads := [][]byte{
		csw(),
		reply,
		csw(),
		statusOK(),
		csw(),
	}
	s, dev := newStubSession(reads)

	got, err := s.DebugRequest(0x00a2, 4)
	if err != nil {
		t.Fatalf("DebugRequest: %v", err)
	}
	if !bytes.Equal(got, reply) {
		t.Fatalf("got %v want %v", got, reply)
	}
	if cmd := binary.LittleEndian.Uint16(dev.writes[1][0:2]); cmd != 0x00a2 {
		t.Fatalf("expected opcode 0x00a2 in request, got %#x", cmd)
	}
}

// Scenario 5: resynchronization on a stray short packet during a large
// payload read.
func TestReadShapeResynchronizes(t *testing.T) {
	stray := csw() // a 13-byte stray envelope where 256 bytes are expected
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	dev := &stubDevice{reads: [][]byte{stray, payload, csw()}}
	tr := NewTransport(dev, dev)

	got, err := tr.readShape(256)
	if err != nil {
		t.Fatalf("readShape: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %d bytes, want %d", len(got), len(payload))
	}
}
