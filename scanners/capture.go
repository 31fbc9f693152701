package scanners

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/edsrzf/mmap-go"
	"github.com/jackmaun/ntlmcarve/extractors"
)

// Reporter receives the structured results of a scan pass. Rendering
// (color, verbosity, output files) is entirely the implementation's
// business; the scan itself prints nothing.
type Reporter interface {
	// Found fires for every signature occurrence, including Unknown ones.
	Found(occ Occurrence)
	// Challenge fires when a Type 2 server challenge was extracted.
	Challenge(occ Occurrence, serverChallenge []byte)
	// Authenticate fires when a Type 3 message was fully decoded.
	Authenticate(occ Occurrence, msg *extractors.AuthMessage)
	// Result fires after every decoded Type 3; hashLine is empty unless
	// outcome is OutcomeHash.
	Result(occ Occurrence, outcome extractors.Outcome, hashLine string)
	// Truncated fires when an occurrence sits too close to the end of the
	// buffer for its fields. The scan continues.
	Truncated(occ Occurrence, err error)
}

// Options control the scan driver, not presentation.
type Options struct {
	// Progress draws a byte progress bar across the buffer.
	Progress bool
}

// ScanBuffer runs one pass over data beginning at start and reports every
// NTLMSSP occurrence. It returns the number of hash lines emitted. No
// decode problem aborts the pass.
func ScanBuffer(data []byte, start int, rep Reporter, opts Options) int {
	var bar *pb.ProgressBar
	if opts.Progress {
		bar = pb.StartNew(len(data))
		bar.Set(pb.Bytes, true)
	}

	var asm extractors.Assembler
	scanner := NewScanner(data, start)
	hashes := 0

	for {
		occ, ok := scanner.Next()
		if !ok {
			break
		}
		if bar != nil {
			bar.SetCurrent(int64(occ.Offset))
		}
		rep.Found(occ)

		switch occ.Type {
		case Challenge:
			challenge, err := extractors.ExtractChallenge(data, occ.Offset)
			if err != nil {
				rep.Truncated(occ, err)
				continue
			}
			asm.SetChallenge(challenge)
			rep.Challenge(occ, challenge)

		case Authenticate:
			msg, err := extractors.ExtractAuthenticate(data, occ.Offset)
			if err != nil {
				// A Type 3 consumes the pending challenge even when its
				// fields are unreadable.
				asm.SetChallenge(nil)
				rep.Truncated(occ, err)
				continue
			}
			rep.Authenticate(occ, msg)

			hash, outcome := asm.Authenticate(msg)
			if outcome == extractors.OutcomeHash {
				hashes++
			}
			rep.Result(occ, outcome, hash)
		}
	}

	if bar != nil {
		bar.SetCurrent(int64(len(data)))
		bar.Finish()
	}
	return hashes
}

// ScanFile maps path read-only and runs a single full pass over it.
func ScanFile(path string, rep Reporter, opts Options) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	mmapData, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %w", err)
	}
	defer mmapData.Unmap()

	ScanBuffer(mmapData, 0, rep, opts)
	return nil
}

// Follow re-scans path whenever new bytes appear past the last known end of
// data, sleeping interval between passes, until ctx is cancelled. The file
// handle is reacquired every pass. Challenge state does not carry across
// passes: a Type 2 in one chunk and its Type 3 in a later chunk will not be
// paired.
func Follow(ctx context.Context, path string, interval time.Duration, rep Reporter, opts Options) error {
	lastEnd := 0
	for {
		end, err := followPass(path, lastEnd, rep, opts)
		if err != nil {
			return err
		}
		lastEnd = end

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func followPass(path string, start int, rep Reporter, opts Options) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return start, fmt.Errorf("failed to read file: %w", err)
	}
	if start > len(data) {
		// File shrank underneath us. Start over from the top.
		start = 0
	}
	if start < len(data) {
		ScanBuffer(data, start, rep, opts)
	}
	return len(data), nil
}
