package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jackmaun/ntlmcarve/extractors"
	"github.com/jackmaun/ntlmcarve/scanners"
)

var (
	headline = color.New(color.FgWhite, color.Bold)
	typeName = color.New(color.FgGreen, color.Bold)
	fieldVal = color.New(color.FgHiWhite)
	alert    = color.New(color.FgRed, color.Bold)
)

// consoleReporter renders scan results for the terminal. The scan itself
// returns structured events; everything about color, verbosity and the
// output file lives here.
type consoleReporter struct {
	verbose bool
	quiet   bool
	outFile string
}

func (r *consoleReporter) Found(occ scanners.Occurrence) {
	if r.quiet {
		return
	}
	if occ.Type == scanners.Unknown {
		if r.verbose {
			fmt.Printf("[*] Unrecognized NTLMSSP signature at offset %d\n", occ.Offset)
		}
		return
	}
	headline.Printf("Found NTLMSSP Message Type %d : ", occ.Type)
	typeName.Print(occ.Type)
	if r.verbose {
		fmt.Printf(" > Offset %d", occ.Offset)
	}
	fmt.Println()
	if occ.Type == scanners.Negotiate {
		fmt.Println()
	}
}

func (r *consoleReporter) Challenge(occ scanners.Occurrence, serverChallenge []byte) {
	if r.quiet {
		return
	}
	r.field("Server Challenge", hex.EncodeToString(serverChallenge))
	fmt.Println()
}

func (r *consoleReporter) Authenticate(occ scanners.Occurrence, msg *extractors.AuthMessage) {
	if r.quiet {
		return
	}
	r.field("Domain", msg.Domain.Text())
	r.fieldDetail("Domain", msg.Domain)
	r.field("Username", msg.Username.Text())
	r.fieldDetail("Username", msg.Username)
	r.field("Workstation", msg.Workstation.Text())
	r.fieldDetail("Workstation", msg.Workstation)
	if r.verbose {
		fmt.Printf("      NTLM length            : %d\n", msg.NTLM.Length)
		fmt.Printf("      NTLM offset            : %d\n", msg.NTLM.Offset)
		r.field("NTProofStr", hex.EncodeToString(msg.NTProof))
		r.field("NTLMv2 Response", hex.EncodeToString(msg.NTLMv2Response))
	}
	fmt.Println()
}

func (r *consoleReporter) Result(occ scanners.Occurrence, outcome extractors.Outcome, hashLine string) {
	switch outcome {
	case extractors.OutcomeHash:
		if !r.quiet {
			headline.Println("NTLMv2 Hash recovered:")
		}
		fmt.Println(hashLine)
		if !r.quiet {
			fmt.Println()
		}
		if r.outFile != "" {
			if err := appendLine(r.outFile, hashLine); err != nil {
				fmt.Printf("[-] Failed to write output file: %v\n", err)
			}
		}
	case extractors.OutcomeNoChallenge:
		if !r.quiet {
			alert.Println("Server Challenge not found... can't create crackable hash :-/")
			fmt.Println()
		}
	case extractors.OutcomeNullSession:
		if !r.quiet {
			fmt.Println("NTLM NULL session found... no hash to generate")
			fmt.Println()
		}
	}
}

func (r *consoleReporter) Truncated(occ scanners.Occurrence, err error) {
	if r.quiet {
		return
	}
	fmt.Printf("[-] Skipping message at offset %d: %v\n", occ.Offset, err)
}

func (r *consoleReporter) field(name, value string) {
	fmt.Print("    > ")
	headline.Printf("%-23s:", name)
	fieldVal.Printf(" %s\n", value)
}

func (r *consoleReporter) fieldDetail(name string, f extractors.Field) {
	if !r.verbose {
		return
	}
	fmt.Printf("      %-23s: %d\n", name+" length", f.Length)
	fmt.Printf("      %-23s: %d\n", name+" offset", f.Offset)
}

// appendLine writes one record and closes the file again, so a concurrent
// reader of the output file never sees a partial line.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
