package version

import (
	"errors"
	"strconv"
	"strings"
)

// Version quadruple. Bump Build on every firmware image handed out.
const (
	Major    = 0
	Minor    = 0
	Revision = 0
	Build    = 1
)

const (
	ProgramName = "Mr. Mister"
	Author      = "Barbato/Donelson"
	WebLink     = "https://github.com/bryscus/mr-mister"
)

// Build information (injected via ldflags - must NOT have default values)
var (
	GitSHA    string
	BuildDate string
)

// ErrInvalidVersion is returned by Parse for malformed version strings.
var ErrInvalidVersion = errors.New("invalid version")

// Info is a snapshot of the program identity.
type Info struct {
	Program   string `json:"program"`
	Author    string `json:"author"`
	WebLink   string `json:"web_link"`
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Revision  int    `json:"revision"`
	Build     int    `json:"build"`
	GitSHA    string `json:"git_sha,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// Get returns the identity of the running build.
func Get() Info {
	return Info{
		Program:   ProgramName,
		Author:    Author,
		WebLink:   WebLink,
		Version:   String(),
		Major:     Major,
		Minor:     Minor,
		Revision:  Revision,
		Build:     Build,
		GitSHA:    GitSHA,
		BuildDate: BuildDate,
	}
}

// String returns the dotted quadruple, e.g. "0.0.0.1".
func String() string {
	return format(Major, Minor, Revision, Build)
}

// Short returns major.minor.revision without the build counter.
func Short() string {
	return strconv.Itoa(Major) + "." + strconv.Itoa(Minor) + "." + strconv.Itoa(Revision)
}

// ShortSHA returns the abbreviated git commit, if one was injected.
func ShortSHA() string {
	if len(GitSHA) >= 7 {
		return GitSHA[:7]
	}
	return GitSHA
}

// Banner returns a one-line identity suitable for boot logs and the CLI.
func Banner() string {
	var b strings.Builder
	b.WriteString(ProgramName)
	b.WriteString(" v")
	b.WriteString(String())
	b.WriteString(" (")
	b.WriteString(Author)
	b.WriteString(")")
	if sha := ShortSHA(); sha != "" {
		b.WriteString(" git ")
		b.WriteString(sha)
	}
	if BuildDate != "" {
		b.WriteString(" built ")
		b.WriteString(BuildDate)
	}
	return b.String()
}

// Compare orders two identities by major, minor, revision and build.
// It returns -1 if i is older than other, 0 if equal and +1 if newer.
func (i Info) Compare(other Info) int {
	a := [4]int{i.Major, i.Minor, i.Revision, i.Build}
	b := [4]int{other.Major, other.Minor, other.Revision, other.Build}
	for k := range a {
		switch {
		case a[k] < b[k]:
			return -1
		case a[k] > b[k]:
			return 1
		}
	}
	return 0
}

// Parse reads "major.minor.revision[.build]". A leading "v" is accepted.
// Only the numeric fields and Version of the result are set.
func Parse(s string) (Info, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Info{}, ErrInvalidVersion
	}
	parts := strings.Split(s, ".")
	if len(parts) < 3 || len(parts) > 4 {
		return Info{}, ErrInvalidVersion
	}
	var n [4]int
	for k, p := range parts {
		if p == "" || p[0] < '0' || p[0] > '9' {
			return Info{}, ErrInvalidVersion
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return Info{}, ErrInvalidVersion
		}
		n[k] = v
	}
	return Info{
		Version:  format(n[0], n[1], n[2], n[3]),
		Major:    n[0],
		Minor:    n[1],
		Revision: n[2],
		Build:    n[3],
	}, nil
}

func format(major, minor, revision, build int) string {
	return strconv.Itoa(major) + "." + strconv.Itoa(minor) + "." +
		strconv.Itoa(revision) + "." + strconv.Itoa(build)
}
