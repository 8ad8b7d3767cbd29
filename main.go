// Package main is the entry point for woolong, the ingress signature reflector.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/woolong/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
