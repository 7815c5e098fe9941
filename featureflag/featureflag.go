package featureflag

import (
	"sort"
	"strings"
)

// FeatureFlag is a lookup map of the enabled flags.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags enabled by the given names. Names are
// trimmed and upper cased, empty names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// Has reports whether flag is set.
func (f FeatureFlag) Has(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do if flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.Has(flag) {
		do()
	}
}

// IfNotSet runs do if flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.Has(flag) {
		do()
	}
}

// Unknown returns the sorted set flags that the server does not know.
func (f FeatureFlag) Unknown() []string {
	known := make(map[Flag]struct{})
	for _, flag := range Flags() {
		known[flag] = struct{}{}
	}

	var unknown []string
	for flag := range f {
		if _, ok := known[flag]; !ok {
			unknown = append(unknown, string(flag))
		}
	}
	sort.Strings(unknown)
	return unknown
}
