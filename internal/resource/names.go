package resource

import (
	"fmt"
	"regexp"
)

// NameGenerator produces display names that do not collide with existing ones.
type NameGenerator interface {
	Unique(base string, taken func(string) bool) string
}

var numberedSuffix = regexp.MustCompile(`^(.*)\.\d{3}$`)

// SequentialNames yields base, base.001, base.002, ...
type SequentialNames struct{}

func (SequentialNames) Unique(base string, taken func(string) bool) string {
	if base == "" {
		base = "Untitled"
	}
	if taken == nil || !taken(base) {
		return base
	}

	stem := base
	if m := numberedSuffix.FindStringSubmatch(base); m != nil {
		stem = m[1]
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", stem, i)
		if !taken(name) {
			return name
		}
	}
}
