package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackmaun/ntlmcarve/scanners"
	"github.com/spf13/cobra"
)

var inputPath string
var outputPath string
var followMode bool
var verbose bool
var quiet bool
var followInterval time.Duration
var remoteScan bool
var remoteHost string
var remoteShare string
var remotePath string
var remoteUser string
var remotePass string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a packet capture file for NTLMv2 hashes",
	Run: func(cmd *cobra.Command, args []string) {
		if quiet {
			verbose = false
		}

		rep := &consoleReporter{
			verbose: verbose,
			quiet:   quiet,
			outFile: outputPath,
		}

		if remoteScan {
			if remoteHost == "" {
				fmt.Println("[-] No remote host specified. Use --host with --remote.")
				return
			}
			if !quiet {
				fmt.Println("[*] Searching remote share for capture files via SMB2...")
			}
			err := scanners.ScanSMBShare(remoteHost, remoteShare, remotePath, remoteUser, remotePass, rep, scanners.Options{})
			if err != nil {
				fmt.Println("[-] Remote scan failed:", err)
			}
			return
		}

		if inputPath == "" {
			fmt.Println("[-] No input file specified. Use --input or --remote.")
			return
		}
		if _, err := os.Stat(inputPath); err != nil {
			fmt.Println("[-] Input file not found:", inputPath)
			return
		}

		if !quiet {
			headline.Println("Searching", inputPath, "for NTLMv2 hashes...")
			if outputPath != "" {
				fmt.Println("Writing output to:", outputPath)
			}
			fmt.Println()
		}

		if followMode {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := scanners.Follow(ctx, inputPath, followInterval, rep, scanners.Options{})
			if err != nil {
				fmt.Println("[-] Scan failed:", err)
				return
			}
			if !quiet {
				fmt.Println("Bye!")
			}
			return
		}

		err := scanners.ScanFile(inputPath, rep, scanners.Options{Progress: !quiet})
		if err != nil {
			fmt.Println("[-] Scan failed:", err)
		}
	},
}

func init() {
	scanCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Binary packet data input file (.pcap, .pcapng, .cap, .etl, others)")
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file to record any found NTLM hashes")
	scanCmd.Flags().BoolVarP(&followMode, "follow", "f", false, "Continuously follow the input file for new data")
	scanCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include message offsets and field length/offset details")
	scanCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only output found NTLM hashes")
	scanCmd.Flags().DurationVar(&followInterval, "interval", time.Second, "Poll interval between follow passes")
	scanCmd.Flags().BoolVar(&remoteScan, "remote", false, "Scan capture files on a remote share via SMB2")
	scanCmd.Flags().StringVar(&remoteHost, "host", "", "Remote host IP or name")
	scanCmd.Flags().StringVar(&remoteShare, "share", "C$", "Remote share name")
	scanCmd.Flags().StringVar(&remotePath, "path", `\`, "Directory on the remote share to search")
	scanCmd.Flags().StringVar(&remoteUser, "username", "", "Remote username")
	scanCmd.Flags().StringVar(&remotePass, "password", "", "Remote password")
	AddCommand(scanCmd)
}
