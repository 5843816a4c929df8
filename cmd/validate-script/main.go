package main

import (
	"fmt"
	"os"

	"github.com/dshills/flowmod/pkg/session"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <script-file>\n", os.Args[0])
		os.Exit(1)
	}

	script, err := session.LoadScript(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := script.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	counts := make(map[session.ActionType]int)
	for _, a := range script.Actions {
		counts[a.Type]++
	}

	instance := script.Instance
	if instance == "" {
		instance = "(set with --instance)"
	}
	fmt.Printf("✓ Script for instance %s is valid\n", instance)
	fmt.Printf("  - Actions: %d\n", len(script.Actions))
	for _, t := range []session.ActionType{
		session.ActionAddToken, session.ActionCancelToken, session.ActionStartMove,
		session.ActionAddVariable, session.ActionEditVariable, session.ActionUndo,
	} {
		if n := counts[t]; n > 0 {
			fmt.Printf("  - %s: %d\n", t, n)
		}
	}
}
