package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/jackmaun/ntlmcarve/cmd"
)

func main() {
	color.Output = os.Stdout
	color.Error = os.Stderr
	cmd.Execute()
}
