package extractors

import (
	"encoding/binary"
	"errors"
	"strings"
	"unicode/utf8"
)

// Fixed positions inside NTLMSSP messages, relative to the start of the
// 8-byte signature. See http://davenport.sourceforge.net/ntlm.html.
const (
	challengeOffset  = 24
	ntlmDescOffset   = 20
	domainDescOffset = 28
	userDescOffset   = 36
	wsDescOffset     = 44

	ntProofLen   = 16
	challengeLen = 8
)

// ErrTruncated means a field read would run past the end of the buffer. It
// is fatal for the occurrence, never for the scan.
var ErrTruncated = errors.New("insufficient data for NTLMSSP field")

// Field is one variable-length NTLM payload: a 2-byte little-endian length,
// 2 bytes of max-length (ignored) and a 4-byte little-endian offset relative
// to the message start.
type Field struct {
	Length uint16
	Offset uint32
	Raw    []byte
}

// Text decodes the field as UTF-16LE by stripping the NUL bytes the 16-bit
// encoding interleaves and keeping the rest. Lossy for code units with a
// genuinely zero byte, best-effort on anything that is not valid UTF-8
// afterwards.
func (f Field) Text() string {
	s := strings.ReplaceAll(string(f.Raw), "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return s
}

// AuthMessage holds the decoded variable-length fields of a Type 3
// (Authenticate) message.
type AuthMessage struct {
	Domain      Field
	Username    Field
	Workstation Field
	NTLM        Field

	NTProof        []byte
	NTLMv2Response []byte
}

func readField(buf []byte, msgStart, descOffset int) (Field, error) {
	descStart := msgStart + descOffset
	if descStart < 0 || descStart+8 > len(buf) {
		return Field{}, ErrTruncated
	}

	f := Field{
		Length: binary.LittleEndian.Uint16(buf[descStart : descStart+2]),
		Offset: binary.LittleEndian.Uint32(buf[descStart+4 : descStart+8]),
	}

	start := msgStart + int(f.Offset)
	end := start + int(f.Length)
	if start < 0 || end > len(buf) {
		return Field{}, ErrTruncated
	}
	f.Raw = buf[start:end]
	return f, nil
}

// ExtractChallenge reads the 8-byte server challenge of a Type 2 message
// starting at msgStart.
func ExtractChallenge(buf []byte, msgStart int) ([]byte, error) {
	start := msgStart + challengeOffset
	if start < 0 || start+challengeLen > len(buf) {
		return nil, ErrTruncated
	}
	return buf[start : start+challengeLen], nil
}

// ExtractAuthenticate decodes the domain, username, workstation and NTLM
// response fields of a Type 3 message starting at msgStart. The NTLM blob is
// split into the 16-byte NT proof and the NTLMv2 response remainder. An NTLM
// blob shorter than the proof (but not empty) counts as truncated.
func ExtractAuthenticate(buf []byte, msgStart int) (*AuthMessage, error) {
	var msg AuthMessage
	var err error

	if msg.Domain, err = readField(buf, msgStart, domainDescOffset); err != nil {
		return nil, err
	}
	if msg.Username, err = readField(buf, msgStart, userDescOffset); err != nil {
		return nil, err
	}
	if msg.Workstation, err = readField(buf, msgStart, wsDescOffset); err != nil {
		return nil, err
	}
	if msg.NTLM, err = readField(buf, msgStart, ntlmDescOffset); err != nil {
		return nil, err
	}

	if msg.NTLM.Length > 0 {
		if int(msg.NTLM.Length) < ntProofLen {
			return nil, ErrTruncated
		}
		msg.NTProof = msg.NTLM.Raw[:ntProofLen]
		msg.NTLMv2Response = msg.NTLM.Raw[ntProofLen:]
	}

	return &msg, nil
}
