package main

import (
	"context"
	"flag"
	"fmt"
)

// cmdStatus lists every rootfs slot under the located basedir, marking the
// active one, for diagnosing which distributions are installed and what
// they're labelled.
func cmdStatus(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("status", flag.ExitOnError)
	fset.Parse(args)

	env, err := probeEnvironment()
	if err != nil {
		return err
	}

	slots, err := env.Slots()
	if err != nil {
		return err
	}

	for _, slot := range slots {
		marker := " "
		if slot.Active {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s\n", marker, slot.Label.String(), slot.Path)
	}
	return nil
}
