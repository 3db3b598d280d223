package main

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

func versionString() string {
	commit := buildCommit
	if shortCommit(commit) == "" {
		commit = vcsRevision()
	}
	return formatVersion(buildVersion, commit)
}

func formatVersion(version, commit string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}
	if v != "dev" {
		return v
	}

	c := shortCommit(commit)
	if c == "" {
		return "dev"
	}
	return "dev-" + c
}

func shortCommit(commit string) string {
	c := strings.TrimSpace(commit)
	if c == "" || c == "unknown" {
		return ""
	}
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// vcsRevision returns the commit stamped by `go build` inside a checkout.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
