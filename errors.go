package rootswitch

import "fmt"

// ErrNotInstalled is returned when the probe chain could not locate a WSL
// base directory at all.
type ErrNotInstalled struct{}

func (ErrNotInstalled) Error() string {
	return "Windows Subsystem for Linux is not installed"
}

// ErrRunning is returned when basedir/temp (or its WSL2-era equivalent) is
// present and non-empty, indicating a Linux instance is currently attached.
type ErrRunning struct{ Basedir string }

func (e ErrRunning) Error() string {
	return fmt.Sprintf("the Linux subsystem appears to be running (found %s/temp); kill all instances before continuing", e.Basedir)
}

// ErrArchiveOpen is fatal: nothing has been modified on disk yet.
type ErrArchiveOpen struct {
	Source string
	Cause  error
}

func (e ErrArchiveOpen) Error() string {
	return fmt.Sprintf("opening archive %s: %v", e.Source, e.Cause)
}

func (e ErrArchiveOpen) Unwrap() error { return e.Cause }

// ErrEntry is non-fatal and accumulates per archive entry. The Extractor
// records each one in its report and carries on; no number of them makes
// extraction or the install transaction fail.
type ErrEntry struct {
	Path  string
	Cause error
}

func (e ErrEntry) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e ErrEntry) Unwrap() error { return e.Cause }

// ErrXAttr is non-fatal per entry, but fatal if it prevents the directory
// sweep from completing for any single path.
type ErrXAttr struct {
	Path   string
	Name   string
	Status error
}

func (e ErrXAttr) Error() string {
	return fmt.Sprintf("xattr %s on %s: %v", e.Name, e.Path, e.Status)
}

func (e ErrXAttr) Unwrap() error { return e.Status }

// ErrRename is fatal for the install transaction and triggers rollback.
type ErrRename struct {
	Src, Dst string
	Status   error
}

func (e ErrRename) Error() string {
	return fmt.Sprintf("rename %s -> %s: %v", e.Src, e.Dst, e.Status)
}

func (e ErrRename) Unwrap() error { return e.Status }

// ErrRollbackFailed is the terminal BROKEN state: both the promote and the
// rollback rename failed, and the rootfs directory is gone.
type ErrRollbackFailed struct {
	Basedir string
	Cause   error
}

func (e ErrRollbackFailed) Error() string {
	return fmt.Sprintf("rollback failed, %s/rootfs is now missing or incomplete: %v; reinstall is required", e.Basedir, e.Cause)
}

func (e ErrRollbackFailed) Unwrap() error { return e.Cause }

// ErrMalformedAttribute is returned by the metadata codec when decoding; the
// directory sweep treats it identically to an absent attribute.
type ErrMalformedAttribute struct {
	Reason string
}

func (e ErrMalformedAttribute) Error() string {
	return fmt.Sprintf("malformed lxattrb record: %s", e.Reason)
}

// ErrLeftoverStaging is fatal: a previous run's staging directory could not
// be removed even after forcing write permission on every entry.
type ErrLeftoverStaging struct {
	Path  string
	Cause error
}

func (e ErrLeftoverStaging) Error() string {
	return fmt.Sprintf("could not remove leftover staging directory %s: %v", e.Path, e.Cause)
}

func (e ErrLeftoverStaging) Unwrap() error { return e.Cause }

// ErrInterrupted signals a clean user cancellation; no rollback is
// attempted, since the staging directory is self-contained.
type ErrInterrupted struct{}

func (ErrInterrupted) Error() string { return "interrupted" }

// ErrAlreadyActive is returned by switch when the requested label is
// already the active rootfs. The switch command prints it to stderr and
// exits with status 0, the same status as a completed switch; there is no
// separate exit code for this outcome.
type ErrAlreadyActive struct{ Label Label }

func (e ErrAlreadyActive) Error() string {
	return fmt.Sprintf("%s is already the active rootfs", e.Label)
}

// ErrNoSuchBackup is returned by switch when no rootfs_<label> backup
// directory matches the requested label.
type ErrNoSuchBackup struct{ Label Label }

func (e ErrNoSuchBackup) Error() string {
	return fmt.Sprintf("no backup rootfs labelled %s", e.Label)
}
