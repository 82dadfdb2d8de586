// Package version provides build and version information for Stepwise Engine.
package version

// Version is the current release version of Stepwise Engine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/StepwiseEngine/internal/version.Version=x.y.z"
var Version = "0.3.0"

// SaveFormat is reported alongside Version so tooling can tell which save
// layout a build writes.
const SaveFormat = 1
