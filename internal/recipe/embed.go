package recipe

import "embed"

// Bundled holds the recipe set this module ships with, so a fresh
// install of provisor can resolve ruff/cargo-audit/docker/etc. without
// any user-supplied recipes directory. Loader.Get consults it last,
// after the override and main recipes directories, mirroring the
// override-shadows-bundled precedence a user-supplied recipe already
// has over a directory one.
//
//go:embed recipes/*.toml
var Bundled embed.FS

const bundledDir = "recipes"
