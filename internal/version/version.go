package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
)

// Version information for the gotolower CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Producer names the tool in archives; cache keys depend on it.
func Producer() string {
	return "gotolower " + Version
}

// Parse checks Version against semver.
func Parse() (*semver.Version, error) {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", Version, err)
	}
	return v, nil
}

// Banner renders the version line of `gotolower version`. With colored
// set the numeric parts are highlighted.
func Banner(colored bool) string {
	var sb strings.Builder
	sb.WriteString("gotolower ")
	v, err := Parse()
	switch {
	case err != nil || !colored:
		sb.WriteString(Version)
	default:
		for _, c := range []*color.Color{versionMajorColor, versionMinorColor, versionPatchColor} {
			c.EnableColor()
		}
		sb.WriteString(versionMajorColor.Sprint(v.Major()) + "." +
			versionMinorColor.Sprint(v.Minor()) + "." +
			versionPatchColor.Sprint(v.Patch()))
		if pre := v.Prerelease(); pre != "" {
			sb.WriteString("-" + pre)
		}
		if meta := v.Metadata(); meta != "" {
			sb.WriteString("+" + meta)
		}
	}
	if GitCommit != "" {
		commit := GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		sb.WriteString(" (" + commit)
		if GitMessage != "" {
			sb.WriteString(": " + firstLine(GitMessage))
		}
		sb.WriteString(")")
	}
	if BuildDate != "" {
		sb.WriteString(" built " + BuildDate)
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
