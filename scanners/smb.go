package scanners

import (
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"
)

// Capture files produced by netsh/pktmon/tcpdump/wireshark. Anything else
// on the share is left alone.
var captureExtensions = []string{".pcap", ".pcapng", ".cap", ".etl"}

const maxRemoteFileSize = 256 * 1024 * 1024

// ScanSMBShare connects to host over SMB2, walks share below root and runs
// a scan pass over every capture file it finds. Per-file failures are
// reported and skipped; only connection-level errors come back.
func ScanSMBShare(host, share, root, user, pass string, rep Reporter, opts Options) error {
	conn, err := net.DialTimeout("tcp", host+":445", 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to SMB host: %w", err)
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     user,
			Password: pass,
		},
	}

	session, err := d.Dial(conn)
	if err != nil {
		return fmt.Errorf("failed to dial SMB session: %w", err)
	}
	defer session.Logoff()

	fs, err := session.Mount(share)
	if err != nil {
		return fmt.Errorf("failed to mount share %s: %w", share, err)
	}
	defer fs.Umount()

	if root == "" {
		root = `\`
	}
	walkSMB(fs, root, rep, opts)
	return nil
}

func isCaptureFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range captureExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

func walkSMB(fs *smb2.Share, dir string, rep Reporter, opts Options) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		fmt.Printf("[-] Failed to read directory %s: %v\n", dir, err)
		return
	}

	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			walkSMB(fs, fullPath, rep, opts)
			continue
		}
		if !isCaptureFile(entry.Name()) {
			continue
		}
		if entry.Size() > maxRemoteFileSize {
			fmt.Printf("[*] Skipping large file: %s (%d bytes)\n", fullPath, entry.Size())
			continue
		}

		fmt.Printf("[+] Found capture file: %s\n", fullPath)
		scanSMBFile(fs, fullPath, rep, opts)
	}
}

func scanSMBFile(fs *smb2.Share, path string, rep Reporter, opts Options) {
	f, err := fs.Open(path)
	if err != nil {
		fmt.Printf("[-] Failed to open file %s: %v\n", path, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		fmt.Printf("[-] Failed to read file %s: %v\n", path, err)
		return
	}

	fmt.Printf("[*] Scanning %s (%d bytes)...\n", path, len(content))
	ScanBuffer(content, 0, rep, opts)
}
