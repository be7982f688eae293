package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/xerrors"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/extract"
	"github.com/wsl-tools/rootfs-switch/internal/identity"
	"github.com/wsl-tools/rootfs-switch/internal/transaction"
	"github.com/wsl-tools/rootfs-switch/internal/xattr"
)

func cmdSwitch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("switch", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: switch <image[:tag]>")
	}
	target := rootswitch.ParseLabel(normalizeSwitchArg(fset.Arg(0)))

	env, err := probeEnvironment()
	if err != nil {
		return err
	}
	if err := env.CheckNotRunning(); err != nil {
		return err
	}

	ex := extract.New(xattr.New(), extract.Options{})
	rec := identity.New(identity.Options{})
	inst := transaction.New(env, ex, rec)

	if err := inst.Switch(target); err != nil {
		if already, ok := err.(rootswitch.ErrAlreadyActive); ok {
			fmt.Fprintln(os.Stderr, already.Error())
			return nil
		}
		return err
	}
	return nil
}

// normalizeSwitchArg converts a "name:tag" CLI argument into the
// "name_version" form Label.String/ParseLabel expect.
func normalizeSwitchArg(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i] + "_" + s[i+1:]
		}
	}
	return s
}
