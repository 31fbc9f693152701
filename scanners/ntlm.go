package scanners

import (
	"bytes"
	"encoding/binary"
)

// Signature is the 8-byte marker every NTLMSSP message starts with.
var Signature = []byte("NTLMSSP\x00")

// MessageType is the 32-bit little-endian word following the signature.
type MessageType uint32

const (
	Unknown      MessageType = 0
	Negotiate    MessageType = 1
	Challenge    MessageType = 2
	Authenticate MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case Negotiate:
		return "Negotiation"
	case Challenge:
		return "Challenge"
	case Authenticate:
		return "Authentication"
	}
	return "Unknown"
}

// Occurrence is one signature hit: where it starts in the buffer and how
// the following type word classifies it.
type Occurrence struct {
	Offset int
	Type   MessageType
}

// Scanner walks a byte buffer and yields every NTLMSSP signature occurrence
// in ascending offset order. The cursor advances just past each signature,
// not past the whole message, so back-to-back messages are never skipped.
type Scanner struct {
	data []byte
	pos  int
}

// NewScanner returns a scanner over data starting its search at start.
// A start past the end of data yields no occurrences.
func NewScanner(data []byte, start int) *Scanner {
	if start < 0 {
		start = 0
	}
	return &Scanner{data: data, pos: start}
}

// Next returns the next signature occurrence, or ok=false once no further
// signature exists. A signature too close to the end of the buffer for a
// full type word classifies as Unknown rather than failing.
func (s *Scanner) Next() (occ Occurrence, ok bool) {
	if s.pos >= len(s.data) {
		return Occurrence{}, false
	}

	idx := bytes.Index(s.data[s.pos:], Signature)
	if idx == -1 {
		s.pos = len(s.data)
		return Occurrence{}, false
	}

	occ.Offset = s.pos + idx
	s.pos = occ.Offset + len(Signature)

	if occ.Offset+len(Signature)+4 <= len(s.data) {
		word := binary.LittleEndian.Uint32(s.data[occ.Offset+len(Signature):])
		switch MessageType(word) {
		case Negotiate, Challenge, Authenticate:
			occ.Type = MessageType(word)
		}
	}
	return occ, true
}
