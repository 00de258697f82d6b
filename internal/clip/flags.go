package clip

import (
	"fmt"
	"strings"
)

// Flags is a set of structural facts about a node.
type Flags uint16

const (
	HasVideo Flags = 1 << iota
	HasAudio
	HasAlpha
	FromFile
	// IsMaster is intrinsic to a leaf and never inherited.
	IsMaster
	// ContainsMaster means some leaf at or below the node is a master.
	ContainsMaster
	MissingResource
	IsSequence
	HasFixedFPS
	HasFixedResolution

	flagLimit
)

var flagNames = []string{
	"has_video",
	"has_audio",
	"has_alpha",
	"from_file",
	"is_master",
	"contains_master",
	"missing_resource",
	"is_sequence",
	"fixed_fps",
	"fixed_resolution",
}

// Has reports whether every flag in want is set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Any reports whether at least one flag in want is set.
func (f Flags) Any(want Flags) bool { return f&want != 0 }

// List returns the individual flags in bit order.
func (f Flags) List() []Flags {
	var out []Flags
	for bit := Flags(1); bit < flagLimit; bit <<= 1 {
		if f&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	names := make([]string, 0, 4)
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if rest := f &^ (flagLimit - 1); rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(names, "|")
}

// ParseFlag resolves a flag by its String name.
func ParseFlag(name string) (Flags, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range flagNames {
		if candidate == name {
			return 1 << i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown flag %q", ErrValue, name)
}

// FilterOptions adjusts the union of child flags. A zero Include means no
// allow-list.
type FilterOptions struct {
	Include Flags
	Exclude Flags
	Append  Flags
}

// Filter unions the child flag sets, then restricts to Include, removes
// Exclude, and finally adds Append. Include and Exclude are mutually
// exclusive, and Append may not name an excluded flag.
func Filter(children []Flags, opts FilterOptions) (Flags, error) {
	if opts.Include != 0 && opts.Exclude != 0 {
		return 0, fmt.Errorf("%w: include and exclude lists are mutually exclusive", ErrFlagConfig)
	}
	if overlap := opts.Append & opts.Exclude; overlap != 0 {
		return 0, fmt.Errorf("%w: %s both appended and excluded", ErrFlagConfig, overlap)
	}
	var union Flags
	for _, f := range children {
		union |= f
	}
	if opts.Include != 0 {
		union &= opts.Include
	}
	union &^= opts.Exclude
	return union | opts.Append, nil
}
