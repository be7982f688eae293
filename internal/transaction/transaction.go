// Package transaction implements the InstallTransaction state machine:
// extract → backup → promote → label → reconcile, with rollback on the
// promote step and a terminal BROKEN state if rollback itself fails.
package transaction

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	rootswitch "github.com/wsl-tools/rootfs-switch"
	"github.com/wsl-tools/rootfs-switch/internal/environment"
	"github.com/wsl-tools/rootfs-switch/internal/extract"
	"github.com/wsl-tools/rootfs-switch/internal/identity"
	"github.com/wsl-tools/rootfs-switch/internal/label"
)

// State names the InstallTransaction's position in its state machine, kept
// for callers that want to report progress (e.g. the install subcommand's
// error message or a test asserting how far a failed run got).
type State int

const (
	Prepared State = iota
	Extracted
	BackedUp
	Switched
	Reconciled
	Committed
	Aborted
	RollingBack
	Broken
)

func (s State) String() string {
	switch s {
	case Prepared:
		return "PREPARED"
	case Extracted:
		return "EXTRACTED"
	case BackedUp:
		return "BACKED_UP"
	case Switched:
		return "SWITCHED"
	case Reconciled:
		return "RECONCILED"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	case RollingBack:
		return "ROLLING_BACK"
	case Broken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// legacyLabel is used when no label can be read from the pre-swap rootfs —
// the oldest installed images predate LabelStore and never got a
// .switch_label file.
var legacyLabel = rootswitch.Label{Name: "ubuntu", Version: "trusty"}

// rename wraps os.Rename so tests can force a specific promote or rollback
// step to fail deterministically, without depending on a filesystem fault
// (permissions, cross-device links) that isn't reproducible everywhere.
var rename = os.Rename

// Install runs one InstallTransaction: extracting source into a staging
// directory under env.Basedir, then atomically swapping it in as the new
// active rootfs, labelling it newLabel, and reconciling identity files for
// the default user.
//
// On success it returns State Committed. On failure before the promote
// rename (step 4), it returns Aborted and the pre-existing rootfs is
// untouched. If the promote rename itself fails, it attempts rollback; if
// rollback succeeds the result is Aborted, and if rollback itself fails the
// result is Broken — basedir/rootfs is in an indeterminate state and
// reinstallation is required. A failure after a successful promote (writing
// the label, reading the default user, reconciling identity files) is
// returned without rollback: the new tree stays active as basedir/rootfs,
// the previous one stays under its rootfs_<label> backup, and the returned
// State is Switched or Reconciled.
type Installer struct {
	Env        *environment.Environment
	Extractor  *extract.Extractor
	Reconciler *identity.Reconciler
}

// New returns an Installer wired from its three collaborators.
func New(env *environment.Environment, ex *extract.Extractor, rec *identity.Reconciler) *Installer {
	return &Installer{Env: env, Extractor: ex, Reconciler: rec}
}

// Result reports how an Install call concluded.
type Result struct {
	State         State
	ExtractReport *extract.Report
}

// Install runs the transaction described above for the given source
// against newLabel.
func (t *Installer) Install(source string, newLabel rootswitch.Label) (Result, error) {
	basedir := t.Env.Basedir
	activeRoot := filepath.Join(basedir, "rootfs")
	stagingRoot := filepath.Join(basedir, "rootfs-temp")

	// Step 1: extract.
	report, err := t.Extractor.Extract(source, stagingRoot)
	if err != nil {
		return Result{State: Aborted}, xerrors.Errorf("extract: %w", err)
	}

	// Step 2: resolve the pre-swap label, falling back to the legacy
	// default when the current rootfs predates LabelStore.
	clabel, ok := label.Read(activeRoot)
	if !ok {
		clabel = legacyLabel
	}
	backupRoot := filepath.Join(basedir, "rootfs_"+clabel.String())

	// Step 3: rename the current rootfs aside.
	if err := rename(activeRoot, backupRoot); err != nil {
		return Result{State: Aborted, ExtractReport: report}, rootswitch.ErrRename{Src: activeRoot, Dst: backupRoot, Status: err}
	}

	// Step 4: promote staging. On failure, roll back to the pre-existing
	// rootfs; if that also fails, the installation is BROKEN.
	if err := rename(stagingRoot, activeRoot); err != nil {
		promoteErr := rootswitch.ErrRename{Src: stagingRoot, Dst: activeRoot, Status: err}
		if rollbackErr := rename(backupRoot, activeRoot); rollbackErr != nil {
			return Result{State: Broken, ExtractReport: report}, rootswitch.ErrRollbackFailed{Basedir: basedir, Cause: fmt.Errorf("promote failed (%v), and rollback failed: %w", promoteErr, rollbackErr)}
		}
		return Result{State: Aborted, ExtractReport: report}, promoteErr
	}

	// Step 5: write the new label.
	if err := label.Write(activeRoot, newLabel); err != nil {
		return Result{State: Switched, ExtractReport: report}, xerrors.Errorf("writing label: %w", err)
	}

	// Step 6: reconcile identity files using the default user recorded
	// before the swap.
	defaultUser, err := t.Env.GetDefaultUser()
	if err != nil {
		return Result{State: Reconciled, ExtractReport: report}, xerrors.Errorf("reading default user: %w", err)
	}
	if err := t.Reconciler.Reconcile(backupRoot, activeRoot, defaultUser.Name); err != nil {
		return Result{State: Reconciled, ExtractReport: report}, xerrors.Errorf("reconciling identity: %w", err)
	}

	return Result{State: Committed, ExtractReport: report}, nil
}

// RunPostInstallHook executes fn with the default user temporarily set to
// root. Restoring the prior default user is registered as an at-exit action
// (rootswitch.RegisterAtExit), which the CLI runs after the command returns
// whether or not fn succeeded. It is a no-op (runs fn directly) when the
// current default user is already root.
func (t *Installer) RunPostInstallHook(fn func() error) error {
	prior, err := t.Env.GetDefaultUser()
	if err != nil {
		return xerrors.Errorf("reading default user: %w", err)
	}
	if prior.Name == "" || prior.Name == "root" {
		return fn()
	}

	if err := t.Env.SetDefaultUser(environment.DefaultUser{}); err != nil {
		return xerrors.Errorf("setting default user to root: %w", err)
	}
	rootswitch.RegisterAtExit(func() error {
		return t.Env.SetDefaultUser(prior)
	})
	return fn()
}

// Switch implements the "switch <image[:tag]>" verb of spec.md §6: it swaps
// in a previously backed-up rootfs by label, parking the currently active
// one under its own label in its place. It returns ErrAlreadyActive if
// target is already active, and ErrNoSuchBackup if no rootfs_<target>
// directory exists.
func (t *Installer) Switch(target rootswitch.Label) error {
	basedir := t.Env.Basedir
	activeRoot := filepath.Join(basedir, "rootfs")

	activeLabel, ok := label.Read(activeRoot)
	if !ok {
		activeLabel = legacyLabel
	}
	if activeLabel == target {
		return rootswitch.ErrAlreadyActive{Label: target}
	}

	backupRoot := filepath.Join(basedir, "rootfs_"+target.String())
	if _, err := os.Stat(backupRoot); err != nil {
		return rootswitch.ErrNoSuchBackup{Label: target}
	}

	parkRoot := filepath.Join(basedir, "rootfs_"+activeLabel.String())
	if err := rename(activeRoot, parkRoot); err != nil {
		return rootswitch.ErrRename{Src: activeRoot, Dst: parkRoot, Status: err}
	}
	if err := rename(backupRoot, activeRoot); err != nil {
		promoteErr := rootswitch.ErrRename{Src: backupRoot, Dst: activeRoot, Status: err}
		if rollbackErr := rename(parkRoot, activeRoot); rollbackErr != nil {
			return rootswitch.ErrRollbackFailed{Basedir: basedir, Cause: fmt.Errorf("switch failed (%v), and rollback failed: %w", promoteErr, rollbackErr)}
		}
		return promoteErr
	}
	return nil
}
