// Package version exposes build metadata injected via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with:
//
//	-ldflags "-X .../internal/version.Version=v1.2.3 -X .../internal/version.Commit=abc1234"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns a single-line version description
func String() string {
	s := "AuthWave " + Version
	if Commit != "" {
		c := Commit
		if len(c) > 7 {
			c = c[:7]
		}
		s += " (" + c + ")"
	}
	return s
}

// PrintVersion writes the full version report to stdout
func PrintVersion() {
	fmt.Println(String())
	if Date != "" {
		fmt.Printf("Built:      %s\n", Date)
	}
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
