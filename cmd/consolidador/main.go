// Command consolidador drives consolidation runs from the terminal.
package main

import (
	"os"

	"github.com/Daniromero1410/Sistema-Positiva/cli"
)

func main() {
	os.Exit(cli.Execute())
}
