// Command aclpush validates ACL rulesets and rolls them out to network
// devices from the command line, without going through the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
