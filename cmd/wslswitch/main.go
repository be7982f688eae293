package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/environment"
)

var (
	debug   = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	basedir = flag.String("basedir", "", "WSL base directory (overrides the normal probe chain)")
)

func funcmain() error {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"install": {cmdInstall},
		"switch":  {cmdSwitch},
		"get":     {cmdGet},
		"status":  {cmdStatus},
	}

	args := flag.Args()
	verb := ""
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "" || verb == "help" {
		fmt.Fprintf(os.Stderr, "wslswitch [-flags] <command> [-flags] <args>\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tinstall [--no-hooks] <target>  - materialize and swap in a new rootfs\n")
		fmt.Fprintf(os.Stderr, "\tswitch <image[:tag]>           - swap back to a previously backed-up rootfs\n")
		fmt.Fprintf(os.Stderr, "\tget <image[:tag]>              - fetch a rootfs archive into the working directory\n")
		fmt.Fprintf(os.Stderr, "\tstatus                         - list installed rootfs slots\n")
		os.Exit(2)
	}

	ctx, canc := rootswitch.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		return fmt.Errorf("unknown command %q; syntax: wslswitch <command> [options]", verb)
	}
	err := v.fn(ctx, args)
	// At-exit actions (such as restoring the default user) run whether or
	// not the command succeeded.
	exitErr := rootswitch.RunAtExit()
	if err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return exitErr
}

// probeEnvironment locates the WSL1 installation using the package-level
// -basedir override if set.
func probeEnvironment() (*environment.Environment, error) {
	return environment.Probe(*basedir, environment.New())
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
