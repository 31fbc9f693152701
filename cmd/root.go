package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ntlmcarve",
	Short: "ntlmcarve - carve NTLMv2 hashes out of raw packet captures",
	Long:  "ntlmcarve scans binary packet capture files (pcap, pcapng, cap, etl or anything else) for embedded NTLMSSP messages and rebuilds crackable NTLMv2 hashes without parsing the capture container.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
	}
}

func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}
