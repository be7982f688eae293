package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/extract"
	"github.com/wsl-tools/rootfs-switch/internal/fetch"
	"github.com/wsl-tools/rootfs-switch/internal/identity"
	"github.com/wsl-tools/rootfs-switch/internal/transaction"
	"github.com/wsl-tools/rootfs-switch/internal/xattr"
)

func cmdInstall(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("install", flag.ExitOnError)
	var (
		noHooks   = fset.Bool("no-hooks", false, "skip post-install hooks")
		posixShim = fset.Bool("posix-shim", false, "reset NTFS ACLs after extraction (needed when running under a POSIX shim such as Cygwin/MSYS2)")
		allowPriv = fset.Bool("allow-privilege-escalation", false, "carry the default user's shadow hash onto root when the pre-swap root hash is disabled")
	)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: install [options] <target>")
	}
	target := fset.Arg(0)

	env, err := probeEnvironment()
	if err != nil {
		return err
	}
	if err := env.CheckNotRunning(); err != nil {
		return err
	}

	f := fetch.New()
	source, cleanup, err := f.Resolve(ctx, target)
	if err != nil {
		return xerrors.Errorf("resolving %s: %w", target, err)
	}
	defer cleanup()

	newLabel := deriveLabel(target)

	ex := extract.New(xattr.New(), extract.Options{PosixShim: *posixShim})
	rec := identity.New(identity.Options{AllowPrivilegeEscalation: *allowPriv})
	inst := transaction.New(env, ex, rec)

	result, err := inst.Install(source, newLabel)
	if err != nil {
		return xerrors.Errorf("install (state=%v): %w", result.State, err)
	}

	if result.ExtractReport != nil {
		if n := len(result.ExtractReport.PerEntryErrors); n > 0 {
			log.Printf("install: %d of %d entries had errors (continuing)", n, result.ExtractReport.Total)
		}
	}

	if !*noHooks {
		if err := inst.RunPostInstallHook(func() error { return nil }); err != nil {
			return xerrors.Errorf("running post-install hooks: %w", err)
		}
	}

	return nil
}

// deriveLabel computes the label a freshly installed rootfs should be
// tagged with from the CLI target string: an "image:tag" reference maps
// directly, and a local archive path falls back to its filename with known
// archive extensions stripped.
func deriveLabel(target string) rootswitch.Label {
	base := filepath.Base(target)
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar", ".tgz", ".squashfs"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if idx := strings.IndexByte(base, ':'); idx >= 0 {
		return rootswitch.Label{Name: strings.ToLower(base[:idx]), Version: strings.ToLower(base[idx+1:])}
	}
	return rootswitch.ParseLabel(strings.ToLower(base))
}
