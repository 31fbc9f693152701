package scanners

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackmaun/ntlmcarve/extractors"
	"github.com/stretchr/testify/assert"
)

type recordingReporter struct {
	found     []Occurrence
	hashes    []string
	outcomes  []extractors.Outcome
	truncated []Occurrence
}

func (r *recordingReporter) Found(occ Occurrence) {
	r.found = append(r.found, occ)
}

func (r *recordingReporter) Challenge(Occurrence, []byte) {}

func (r *recordingReporter) Authenticate(Occurrence, *extractors.AuthMessage) {}

func (r *recordingReporter) Result(occ Occurrence, outcome extractors.Outcome, hashLine string) {
	r.outcomes = append(r.outcomes, outcome)
	if outcome == extractors.OutcomeHash {
		r.hashes = append(r.hashes, hashLine)
	}
}

func (r *recordingReporter) Truncated(occ Occurrence, err error) {
	r.truncated = append(r.truncated, occ)
}

func utf16le(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

func buildChallengeMessage(challenge []byte) []byte {
	msg := make([]byte, 32)
	copy(msg, Signature)
	binary.LittleEndian.PutUint32(msg[8:], uint32(Challenge))
	copy(msg[24:], challenge)
	return msg
}

func buildAuthenticateMessage(domain, username, workstation string, ntlm []byte) []byte {
	msg := make([]byte, 64)
	copy(msg, Signature)
	binary.LittleEndian.PutUint32(msg[8:], uint32(Authenticate))

	appendField := func(descOff int, payload []byte) {
		binary.LittleEndian.PutUint16(msg[descOff:], uint16(len(payload)))
		binary.LittleEndian.PutUint16(msg[descOff+2:], uint16(len(payload)))
		binary.LittleEndian.PutUint32(msg[descOff+4:], uint32(len(msg)))
		msg = append(msg, payload...)
	}

	appendField(20, ntlm)
	appendField(28, utf16le(domain))
	appendField(36, utf16le(username))
	appendField(44, utf16le(workstation))
	return msg
}

func ntlmBlob(proofByte, respByte byte, respLen int) []byte {
	return append(bytes.Repeat([]byte{proofByte}, 16), bytes.Repeat([]byte{respByte}, respLen)...)
}

func TestScanBufferNoSignatures(t *testing.T) {
	rep := &recordingReporter{}
	hashes := ScanBuffer(bytes.Repeat([]byte{0x90}, 8192), 0, rep, Options{})

	assert.Zero(t, hashes)
	assert.Empty(t, rep.found)
	assert.Empty(t, rep.hashes)
}

func TestScanBufferChallengeResponsePair(t *testing.T) {
	// Type 2 at offset 0, Type 3 at offset 100, junk in between.
	buf := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf = append(buf, bytes.Repeat([]byte{0x41}, 100-len(buf))...)
	buf = append(buf, buildAuthenticateMessage("", "bob", "WS1", ntlmBlob(0xAA, 0xBB, 10))...)

	rep := &recordingReporter{}
	hashes := ScanBuffer(buf, 0, rep, Options{})

	assert.Equal(t, 1, hashes)
	assert.Len(t, rep.hashes, 1)
	assert.Equal(t,
		"bob::WS1:0102030405060708:"+strings.Repeat("aa", 16)+":"+strings.Repeat("bb", 10),
		rep.hashes[0])

	assert.Len(t, rep.found, 2)
	assert.Equal(t, 0, rep.found[0].Offset)
	assert.Equal(t, 100, rep.found[1].Offset)
}

func TestScanBufferAuthenticateWithoutChallenge(t *testing.T) {
	buf := buildAuthenticateMessage("CORP", "alice", "WS1", ntlmBlob(0xAA, 0xBB, 10))

	rep := &recordingReporter{}
	hashes := ScanBuffer(buf, 0, rep, Options{})

	assert.Zero(t, hashes)
	assert.Equal(t, []extractors.Outcome{extractors.OutcomeNoChallenge}, rep.outcomes)
}

func TestScanBufferNullSession(t *testing.T) {
	buf := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf = append(buf, buildAuthenticateMessage("", "", "WS1", nil)...)

	rep := &recordingReporter{}
	hashes := ScanBuffer(buf, 0, rep, Options{})

	assert.Zero(t, hashes)
	assert.Equal(t, []extractors.Outcome{extractors.OutcomeNullSession}, rep.outcomes)
}

func TestScanBufferChallengeConsumedByNullSession(t *testing.T) {
	// NULL session eats the pending challenge, so the following Type 3
	// has nothing to pair with.
	buf := buildChallengeMessage(bytes.Repeat([]byte{0x11}, 8))
	buf = append(buf, buildAuthenticateMessage("", "", "WS1", nil)...)
	buf = append(buf, buildAuthenticateMessage("", "bob", "WS1", ntlmBlob(0xAA, 0xBB, 10))...)

	rep := &recordingReporter{}
	hashes := ScanBuffer(buf, 0, rep, Options{})

	assert.Zero(t, hashes)
	assert.Equal(t,
		[]extractors.Outcome{extractors.OutcomeNullSession, extractors.OutcomeNoChallenge},
		rep.outcomes)
}

func TestScanBufferLatestChallengeWins(t *testing.T) {
	buf := buildChallengeMessage(bytes.Repeat([]byte{0x11}, 8))
	buf = append(buf, buildChallengeMessage(bytes.Repeat([]byte{0x22}, 8))...)
	buf = append(buf, buildAuthenticateMessage("CORP", "alice", "WS1", ntlmBlob(0xAA, 0xBB, 10))...)

	rep := &recordingReporter{}
	ScanBuffer(buf, 0, rep, Options{})

	assert.Len(t, rep.hashes, 1)
	assert.Contains(t, rep.hashes[0], ":"+strings.Repeat("22", 8)+":")
}

func TestScanBufferTruncatedAuthenticate(t *testing.T) {
	// Signature plus type word with no room for the field descriptors.
	buf := buildChallengeMessage(bytes.Repeat([]byte{0x11}, 8))
	buf = append(buf, Signature...)
	buf = append(buf, 3, 0, 0, 0)

	rep := &recordingReporter{}
	hashes := ScanBuffer(buf, 0, rep, Options{})

	assert.Zero(t, hashes)
	assert.Len(t, rep.truncated, 1)
	assert.Empty(t, rep.outcomes)
}

func TestScanBufferIdempotent(t *testing.T) {
	buf := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf = append(buf, buildAuthenticateMessage("CORP", "alice", "WS1", ntlmBlob(0xAA, 0xBB, 24))...)

	first := &recordingReporter{}
	second := &recordingReporter{}
	ScanBuffer(buf, 0, first, Options{})
	ScanBuffer(buf, 0, second, Options{})

	assert.Equal(t, first.hashes, second.hashes)
	assert.Equal(t, first.found, second.found)
	assert.Equal(t, first.outcomes, second.outcomes)
}

func TestScanFile(t *testing.T) {
	buf := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf = append(buf, buildAuthenticateMessage("", "bob", "WS1", ntlmBlob(0xAA, 0xBB, 10))...)

	path := filepath.Join(t.TempDir(), "capture.pcap")
	assert.NoError(t, os.WriteFile(path, buf, 0644))

	rep := &recordingReporter{}
	assert.NoError(t, ScanFile(path, rep, Options{}))
	assert.Len(t, rep.hashes, 1)
}

func TestScanFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pcap")
	assert.NoError(t, os.WriteFile(path, nil, 0644))

	rep := &recordingReporter{}
	assert.NoError(t, ScanFile(path, rep, Options{}))
	assert.Empty(t, rep.found)
}

func TestScanFileMissing(t *testing.T) {
	rep := &recordingReporter{}
	err := ScanFile(filepath.Join(t.TempDir(), "nope.pcap"), rep, Options{})
	assert.Error(t, err)
}

func TestFollowPassScansOnlyNewData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.etl")

	pair := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	pair = append(pair, buildAuthenticateMessage("", "bob", "WS1", ntlmBlob(0xAA, 0xBB, 10))...)
	assert.NoError(t, os.WriteFile(path, pair, 0644))

	rep := &recordingReporter{}
	end, err := followPass(path, 0, rep, Options{})
	assert.NoError(t, err)
	assert.Equal(t, len(pair), end)
	assert.Len(t, rep.hashes, 1)

	// Append a second pair and scan from the previous end of data.
	more := buildChallengeMessage(bytes.Repeat([]byte{0x22}, 8))
	more = append(more, buildAuthenticateMessage("CORP", "alice", "WS1", ntlmBlob(0xCC, 0xDD, 10))...)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NoError(t, err)
	_, err = f.Write(more)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	rep2 := &recordingReporter{}
	end2, err := followPass(path, end, rep2, Options{})
	assert.NoError(t, err)
	assert.Equal(t, len(pair)+len(more), end2)
	assert.Len(t, rep2.hashes, 1)
	assert.Contains(t, rep2.hashes[0], `CORP\alice`)

	// Offsets stay absolute within the file.
	assert.Equal(t, len(pair), rep2.found[0].Offset)
}

func TestFollowPassSplitPairNotMatched(t *testing.T) {
	// Challenge in the first chunk, authenticate appended later: state
	// does not persist across passes, so no hash comes out.
	path := filepath.Join(t.TempDir(), "split.etl")

	chunk1 := buildChallengeMessage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.NoError(t, os.WriteFile(path, chunk1, 0644))

	rep := &recordingReporter{}
	end, err := followPass(path, 0, rep, Options{})
	assert.NoError(t, err)
	assert.Empty(t, rep.hashes)

	chunk2 := buildAuthenticateMessage("", "bob", "WS1", ntlmBlob(0xAA, 0xBB, 10))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NoError(t, err)
	_, err = f.Write(chunk2)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	rep2 := &recordingReporter{}
	_, err = followPass(path, end, rep2, Options{})
	assert.NoError(t, err)
	assert.Empty(t, rep2.hashes)
	assert.Equal(t, []extractors.Outcome{extractors.OutcomeNoChallenge}, rep2.outcomes)
}

func TestFollowStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follow.pcap")
	assert.NoError(t, os.WriteFile(path, buildChallengeMessage(bytes.Repeat([]byte{0x11}, 8)), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := &recordingReporter{}
	err := Follow(ctx, path, 10*time.Millisecond, rep, Options{})
	assert.NoError(t, err)
	// The pass before the cancel check still ran.
	assert.Len(t, rep.found, 1)
}
