package clip

import (
	"errors"
	"testing"
)

func TestFilterAppliesIncludeExcludeAppendInOrder(t *testing.T) {
	children := []Flags{HasVideo | FromFile, HasAudio | MissingResource}
	tests := []struct {
		name string
		opts FilterOptions
		want Flags
	}{
		{name: "union", want: HasVideo | HasAudio | FromFile | MissingResource},
		{name: "include", opts: FilterOptions{Include: HasVideo | HasAudio}, want: HasVideo | HasAudio},
		{name: "exclude", opts: FilterOptions{Exclude: MissingResource}, want: HasVideo | HasAudio | FromFile},
		{name: "append after include", opts: FilterOptions{Include: HasVideo, Append: IsSequence}, want: HasVideo | IsSequence},
		{name: "append after exclude", opts: FilterOptions{Exclude: FromFile, Append: HasAlpha}, want: HasVideo | HasAudio | MissingResource | HasAlpha},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Filter(children, tc.opts)
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFilterRejectsContradictoryOptions(t *testing.T) {
	if _, err := Filter(nil, FilterOptions{Include: HasVideo, Exclude: HasAudio}); !errors.Is(err, ErrFlagConfig) {
		t.Fatalf("expected ErrFlagConfig for include+exclude, got %v", err)
	}
	if _, err := Filter(nil, FilterOptions{Exclude: HasAudio, Append: HasAudio | HasVideo}); !errors.Is(err, ErrFlagConfig) {
		t.Fatalf("expected ErrFlagConfig for append overlapping exclude, got %v", err)
	}
}

func TestFlagsStringAndParse(t *testing.T) {
	f := HasVideo | IsSequence
	if got := f.String(); got != "has_video|is_sequence" {
		t.Fatalf("unexpected String %q", got)
	}
	if Flags(0).String() != "none" {
		t.Fatalf("unexpected empty String %q", Flags(0).String())
	}
	for _, flag := range (HasVideo | HasAudio | HasAlpha | FromFile | IsMaster | ContainsMaster | MissingResource | IsSequence | HasFixedFPS | HasFixedResolution).List() {
		parsed, err := ParseFlag(flag.String())
		if err != nil {
			t.Fatalf("ParseFlag(%q): %v", flag, err)
		}
		if parsed != flag {
			t.Fatalf("round trip of %q gave %q", flag, parsed)
		}
	}
	if _, err := ParseFlag("sparkles"); !errors.Is(err, ErrValue) {
		t.Fatalf("expected ErrValue for unknown flag, got %v", err)
	}
}
