// Package data holds the constant tables the resolver, choice
// resolver, and failure analyzer consult: per-family OS package name
// maps, arch normalization, shell profile locations, the CUDA/driver
// compatibility matrix, and the built-in failure handler catalogs.
//
// These are plain data, not logic, deliberately: adding support for a
// new distro family or a new CUDA release is a table edit here, never
// a resolver code change.
package data

// PackageMap maps distro family to the OS package names a recipe's
// requires.packages needs on that family. Kept flat (one level, no
// per-arch/per-version branching) per spec's data model: finer-grained
// variance belongs in the recipe's own install map, not this table.
type PackageMap map[string][]string

// BuildEssentials are the toolchain packages needed before compiling
// Rust crates with native dependencies (openssl-sys, etc.), grounding
// S1/S2's step (1).
var BuildEssentials = PackageMap{
	"debian": {"pkg-config", "libssl-dev"},
	"rhel":   {"pkgconf-pkg-config", "openssl-devel"},
	"arch":   {"pkgconf", "openssl"},
	"alpine": {"pkgconf", "openssl-dev"},
	"suse":   {"pkg-config", "libopenssl-devel"},
}

// PythonToolchain covers the headers pip-installed packages with C
// extensions need to build from source.
var PythonToolchain = PackageMap{
	"debian": {"python3-dev", "python3-pip"},
	"rhel":   {"python3-devel", "python3-pip"},
	"arch":   {"python", "python-pip"},
	"alpine": {"python3-dev", "py3-pip"},
	"suse":   {"python3-devel", "python3-pip"},
}

// DockerEngine lists the native packages for docker's apk/apt/dnf
// install methods when a recipe prefers the distro's own package over
// Docker's upstream repo, grounding S3 (Alpine apk path).
var DockerEngine = PackageMap{
	"alpine": {"docker", "docker-cli-compose"},
	"debian": {"docker.io", "docker-compose-v2"},
	"rhel":   {"docker", "docker-compose"},
}

// LibToPackageMap resolves a shared library soname a tool's linker
// needs (surfaced by ldd / dlopen failures) to the OS package that
// provides it, per family. Used by the env_fix / install_dep failure
// strategies when a step fails with "error while loading shared
// libraries".
var LibToPackageMap = map[string]PackageMap{
	"libssl.so.3": {
		"debian": {"libssl3"},
		"rhel":   {"openssl-libs"},
		"arch":   {"openssl"},
		"alpine": {"openssl"},
		"suse":   {"libopenssl3"},
	},
	"libffi.so.8": {
		"debian": {"libffi8"},
		"rhel":   {"libffi"},
		"arch":   {"libffi"},
		"alpine": {"libffi"},
		"suse":   {"libffi8"},
	},
}

// archAliases maps the normalized arch string (as produced by
// internal/profile) to the arch tag a distro's own package names
// sometimes embed (e.g. Debian's multiarch triplets).
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"aarch64": "arm64",
	"armv7l":  "armhf",
}

// NormalizeArchForFamily returns the family-specific arch tag for a
// normalized arch string, or the input unchanged if no alias applies.
func NormalizeArchForFamily(arch string) string {
	if alias, ok := archAliases[arch]; ok {
		return alias
	}
	return arch
}

// ShellProfiles lists the rc files shell_config steps append PATH/env
// exports to, keyed by shell name. Order matters: the first existing
// file in a user's $HOME wins.
var ShellProfiles = map[string][]string{
	"bash": {".bashrc", ".bash_profile", ".profile"},
	"zsh":  {".zshrc", ".zprofile"},
	"fish": {".config/fish/config.fish"},
}
