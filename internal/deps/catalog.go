package deps

// Catalog maps each package manager to the packages that provide the
// OpenGL, Wayland, X11 and input development files. It is read-only.
type Catalog struct {
	packages map[Kind][]string
}

// NewCatalog copies entries into a new Catalog.
func NewCatalog(entries map[Kind][]string) Catalog {
	c := Catalog{packages: make(map[Kind][]string, len(entries))}
	for k, pkgs := range entries {
		c.packages[k] = append([]string(nil), pkgs...)
	}
	return c
}

// Packages returns a copy of the ordered package list for k.
func (c Catalog) Packages(k Kind) []string {
	return append([]string(nil), c.packages[k]...)
}

var defaultCatalog = NewCatalog(map[Kind][]string{
	Apt: {
		"pkg-config",
		"libgl1-mesa-dev",
		"libwayland-dev",
		"wayland-protocols",
		"libxkbcommon-dev",
		"libx11-dev",
		"libxrandr-dev",
		"libxinerama-dev",
		"libxcursor-dev",
		"libxi-dev",
	},
	Dnf: {
		"pkgconfig",
		"mesa-libGL-devel",
		"wayland-devel",
		"wayland-protocols-devel",
		"libxkbcommon-devel",
		"libX11-devel",
		"libXrandr-devel",
		"libXinerama-devel",
		"libXcursor-devel",
		"libXi-devel",
	},
	Pacman: {
		"pkg-config",
		"libglvnd",
		"wayland",
		"wayland-protocols",
		"libxkbcommon",
		"libx11",
		"libxrandr",
		"libxinerama",
		"libxcursor",
		"libxi",
	},
})

// DefaultCatalog is the compiled-in catalog.
func DefaultCatalog() Catalog {
	return defaultCatalog
}
