// Package version holds the build version, set with
//
//	go build -ldflags "-X github.com/ramonehamilton/cardsynergy/internal/version.Version=v0.3.0"
package version

// Version defaults to "dev" for local builds.
var Version = "dev"

// Service is the name reported by the health endpoint and the CLI.
const Service = "cardsynergy"
