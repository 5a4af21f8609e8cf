package fel

import "testing"

func TestWriteMBRRejectsWrongSize(t *testing.T) {
	s, _ := newStubSession(nil)
	_, err := s.WriteMBR(make([]byte, 100), false)
	assertBadArgument(t, err)
}

func TestTransmiteReadRejectsOversizeLength(t *testing.T) {
	s, _ := newStubSession(nil)
	_, err := s.TransmiteRead(0, MaxChunk+1, MediaDRAM)
	assertBadArgument(t, err)
}

func assertBadArgument(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected BadArgument error, got nil")
	}
	felErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if felErr.Kind != ErrBadArgument {
		t.Fatalf("expected ErrBadArgument, got %v", felErr.Kind)
	}
}
