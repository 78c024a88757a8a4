// Command regent runs a ReAct agent from the terminal.
//
//	regent run "What time is it in Tokyo?"
//	regent --model claude-3-5-sonnet-20240620 chat
//	regent adapters
//
// Configuration comes from the environment and the YAML file named by
// REGENT_CONFIG; flags override both.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
}
