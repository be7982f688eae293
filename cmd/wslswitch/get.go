package main

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/xerrors"

	"github.com/wsl-tools/rootfs-switch/internal/fetch"
)

// cmdGet fetches a rootfs archive into the current directory without
// installing it, for callers that want to inspect or cache the archive
// themselves.
func cmdGet(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("get", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: get <image[:tag]>")
	}
	target := fset.Arg(0)

	f := fetch.New()
	path, cleanup, err := f.Resolve(ctx, target)
	if err != nil {
		return xerrors.Errorf("resolving %s: %w", target, err)
	}
	_ = cleanup // the archive is the point of "get"; leave it on disk for the caller

	fmt.Println(path)
	return nil
}
