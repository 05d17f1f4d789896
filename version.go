package raysim

import _ "embed"

// Version is the release version of raysim.
//
//go:embed VERSION
var Version string
