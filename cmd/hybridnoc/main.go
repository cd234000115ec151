// Command hybridnoc runs scenarios on the hybrid TDM/BE NoC model and
// inspects its paths and registers.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
