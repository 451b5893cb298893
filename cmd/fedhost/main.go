// Package main is the entry point for fedhost, a runtime host that
// composes independently built and deployed federated modules.
package main

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	Execute()
}
