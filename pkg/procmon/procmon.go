// Package procmon lists running processes for executable analysis.
package procmon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// DefaultExcluded are core system processes never analyzed.
var DefaultExcluded = []string{
	"System", "smss.exe", "csrss.exe", "wininit.exe", "winlogon.exe",
	"services.exe", "lsass.exe", "svchost.exe", "dwm.exe", "explorer.exe",
	"init", "systemd", "kthreadd",
}

// Lister enumerates running processes.
type Lister interface {
	RunningProcesses() ([]types.ProcessInfo, error)
}

// Config for process listing
type Config struct {
	// ProcRoot is the procfs mount point; empty means /proc.
	ProcRoot string
	// Excluded process names, compared case-insensitively. Nil means DefaultExcluded.
	Excluded []string
}

// ProcLister reads processes from procfs.
type ProcLister struct {
	fs       procfs.FS
	excluded sets.Set[string]
	log      *logrus.Logger
}

// New creates a ProcLister.
func New(cfg Config, log *logrus.Logger) (*ProcLister, error) {
	root := cfg.ProcRoot
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", root, err)
	}

	excluded := cfg.Excluded
	if excluded == nil {
		excluded = DefaultExcluded
	}
	names := sets.New[string]()
	for _, n := range excluded {
		names.Insert(strings.ToLower(n))
	}
	return &ProcLister{fs: fs, excluded: names, log: log}, nil
}

// RunningProcesses returns every non-excluded process. Processes that exit
// while being read are skipped.
func (pl *ProcLister) RunningProcesses() ([]types.ProcessInfo, error) {
	procs, err := pl.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]types.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info, err := pl.processInfo(p)
		if err != nil {
			pl.log.WithError(err).WithField("pid", p.PID).Debug("Skipping process")
			continue
		}
		if pl.Excluded(info.Name) {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Excluded reports whether a process name is on the exclusion list.
func (pl *ProcLister) Excluded(name string) bool {
	return pl.excluded.Has(strings.ToLower(name))
}

func (pl *ProcLister) processInfo(p procfs.Proc) (types.ProcessInfo, error) {
	name, err := p.Comm()
	if err != nil {
		return types.ProcessInfo{}, err
	}
	// Kernel threads and other users' processes have no readable exe.
	exe, _ := p.Executable()
	cmdline, _ := p.CmdLine()

	return types.ProcessInfo{
		PID:     p.PID,
		Name:    name,
		ExePath: exe,
		Cmdline: strings.Join(cmdline, " "),
	}, nil
}

// CmdlineHash returns a short stable hash of a command line. Process
// sweep logs and process alerts carry it as cmdline_hash so repeated
// alerts for the same invocation can be grouped.
func CmdlineHash(cmdline string) string {
	sum := sha256.Sum256([]byte(cmdline))
	return hex.EncodeToString(sum[:8])
}
