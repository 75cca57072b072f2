// Package deps finds the host package manager and the native development
// libraries the renderer needs, and offers to install the missing ones.
package deps

import (
	"context"

	"github.com/aurashell/rendererbuild/internal/command"
)

// Kind identifies a Linux package manager.
type Kind string

const (
	// Apt uses the Debian/Ubuntu package manager
	Apt Kind = "apt"
	// Dnf uses the Fedora package manager
	Dnf Kind = "dnf"
	// Pacman uses the Arch Linux package manager
	Pacman Kind = "pacman"
	// None means no supported manager responded
	None Kind = "none"
)

// Priority is the order managers are probed in.
var Priority = []Kind{Apt, Dnf, Pacman}

type manager struct {
	version []string
	query   []string
	install []string
}

var managers = map[Kind]manager{
	Apt: {
		version: []string{"apt", "--version"},
		query:   []string{"dpkg", "-s"},
		install: []string{"apt", "install", "-y"},
	},
	Dnf: {
		version: []string{"dnf", "--version"},
		query:   []string{"rpm", "-q"},
		install: []string{"dnf", "install", "-y"},
	},
	Pacman: {
		version: []string{"pacman", "--version"},
		query:   []string{"pacman", "-Q"},
		install: []string{"pacman", "-S", "--noconfirm"},
	},
}

// Detect returns the first manager in Priority whose version query
// succeeds, or None.
func Detect(ctx context.Context, r command.Runner) Kind {
	for _, k := range Priority {
		out, err := r.Run(ctx, command.FromArgv(managers[k].version))
		if err == nil && out.Success() {
			return k
		}
	}
	return None
}

// Installed asks the manager's package database whether pkg is installed.
// A query that cannot run counts as not installed.
func Installed(ctx context.Context, r command.Runner, k Kind, pkg string) bool {
	m, ok := managers[k]
	if !ok {
		return false
	}
	argv := append(append([]string(nil), m.query...), pkg)
	out, err := r.Run(ctx, command.FromArgv(argv))
	return err == nil && out.Success()
}

// Missing returns the packages of the catalog entry for k that are not
// installed, in catalog order. checked, when not nil, is called after each
// query.
func Missing(ctx context.Context, r command.Runner, k Kind, c Catalog, checked func(pkg string, installed bool)) []string {
	var missing []string
	for _, pkg := range c.Packages(k) {
		installed := Installed(ctx, r, k, pkg)
		if checked != nil {
			checked(pkg, installed)
		}
		if !installed {
			missing = append(missing, pkg)
		}
	}
	return missing
}

// InstallCommand builds the argv that installs packages with k, prefixed
// with the elevation command unless privileged. It returns nil for None.
func InstallCommand(k Kind, packages []string, privileged bool) []string {
	m, ok := managers[k]
	if !ok {
		return nil
	}
	argv := append(append([]string(nil), m.install...), packages...)
	return command.Elevate(argv, privileged)
}
