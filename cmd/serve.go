package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackmaun/ntlmcarve/extractors"
	"github.com/jackmaun/ntlmcarve/scanners"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ntlmcarve in server mode for remote scanning",
	Long:  `Run ntlmcarve in server mode for remote scanning. This is not intended to be used directly by users.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("[*] Starting ntlmcarve server on port 8080...")
		http.HandleFunc("/scan", handleScanRequest)
		http.ListenAndServe(":8080", nil)
	},
}

// collectReporter gathers scan results for the JSON response instead of
// rendering them.
type collectReporter struct {
	messages int
	hashes   []string
}

func (c *collectReporter) Found(occ scanners.Occurrence) {
	if occ.Type != scanners.Unknown {
		c.messages++
	}
}

func (c *collectReporter) Challenge(scanners.Occurrence, []byte) {}

func (c *collectReporter) Authenticate(scanners.Occurrence, *extractors.AuthMessage) {}

func (c *collectReporter) Result(occ scanners.Occurrence, outcome extractors.Outcome, hashLine string) {
	if outcome == extractors.OutcomeHash {
		c.hashes = append(c.hashes, hashLine)
	}
}

func (c *collectReporter) Truncated(scanners.Occurrence, error) {}

func handleScanRequest(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("path")
	if filePath == "" {
		http.Error(w, "missing path parameter", http.StatusBadRequest)
		return
	}

	collector := &collectReporter{}
	if err := scanners.ScanFile(filePath, collector, scanners.Options{}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	results := map[string]interface{}{
		"NTLMSSP Messages": collector.messages,
		"NTLMv2 Hashes":    collector.hashes,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func init() {
	AddCommand(serveCmd)
}
