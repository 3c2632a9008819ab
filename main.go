// ./main.go
package main

import (
	"github.com/xkilldash9x/harvest-cli/cmd"
)

// main is the entry point for the harvest CLI.
func main() {
	cmd.Execute()
}
