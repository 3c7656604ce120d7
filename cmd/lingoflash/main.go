// Command lingoflash is the spaced-repetition study core for English learners.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
