package version

import "testing"

func TestGet(t *testing.T) {
	previousVersion := Version
	previousMajor := Major
	previousMinor := Minor
	previousPatch := Patch
	previousBuilt := Built
	previousCommit := GitCommit

	Version = "1.2.3"
	Major = "1"
	Minor = "2"
	Patch = "3"
	Built = "2026-08-01T12:34:56Z"
	GitCommit = "abc123"

	t.Cleanup(func() {
		Version = previousVersion
		Major = previousMajor
		Minor = previousMinor
		Patch = previousPatch
		Built = previousBuilt
		GitCommit = previousCommit
	})

	info := Get()
	if info.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", info.Version)
	}
	if info.Major != 1 || info.Minor != 2 || info.Patch != 3 {
		t.Fatalf("expected 1.2.3, got %d.%d.%d", info.Major, info.Minor, info.Patch)
	}
	if info.Built != "2026-08-01T12:34:56Z" {
		t.Fatalf("built timestamp not preserved: %q", info.Built)
	}
	if info.GitCommit != "abc123" {
		t.Fatalf("git commit not preserved: %q", info.GitCommit)
	}
}

func TestGetToleratesUnparsableParts(t *testing.T) {
	previousMajor := Major
	Major = "not-a-number"
	t.Cleanup(func() { Major = previousMajor })

	if got := Get().Major; got != 0 {
		t.Fatalf("unparsable major must be 0, got %d", got)
	}
}
