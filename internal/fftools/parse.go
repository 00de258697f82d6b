package fftools

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Filter describes one entry of "ffmpeg -filters".
type Filter struct {
	Name        string
	Timeline    bool
	Slice       bool
	Command     bool
	Video       bool
	Audio       bool
	Inputs      string
	Outputs     string
	Description string
}

// Codec describes one entry of "ffmpeg -codecs".
type Codec struct {
	Name        string
	Decode      bool
	Encode      bool
	Video       bool
	Audio       bool
	IntraOnly   bool
	Lossy       bool
	Lossless    bool
	Description string
}

// Encoders lists the named encoders ffmpeg reports for the codec, such as
// libx264 for h264. A codec without an encoders note encodes under its own name.
func (c Codec) Encoders() []string {
	return namedList(c.Description, "(encoders:")
}

func namedList(description, marker string) []string {
	_, rest, ok := strings.Cut(description, marker)
	if !ok {
		return nil
	}
	list, _, _ := strings.Cut(rest, ")")
	return strings.Fields(list)
}

// PixelFormat describes one entry of "ffmpeg -pix_fmts".
type PixelFormat struct {
	Name         string
	Input        bool
	Output       bool
	Hardware     bool
	Paletted     bool
	Bitstream    bool
	Components   int
	BitsPerPixel int
	BitDepths    string
}

var (
	// " T.C acrusher          A->A       Reduce audio bit resolution."
	filterLine = regexp.MustCompile(`^ ([TSC.]{3}) (\S+) +([AVN|]+)->([AVN|]+) +(.*)$`)
	// " DEV.LS h264                 H.264 / AVC / MPEG-4 AVC"
	codecLine = regexp.MustCompile(`^ ([D.][E.][VASDT.][I.][L.][S.]) (\S+) +(.*)$`)
	// "IO... yuv420p                3             12      8-8-8"
	pixFmtLine = regexp.MustCompile(`^([I.][O.][H.][P.][B.]) (\S+) +([0-9]+) +([0-9]+)(?: +(\S+))?\s*$`)
)

// ParseFilters parses the output of "ffmpeg -filters". Lines that look like
// entries but fail to parse are returned as skipped; the legend above the
// first entry is ignored.
func ParseFilters(listing string) (map[string]Filter, []string) {
	filters := make(map[string]Filter)
	var skipped []string
	foundFirst := false
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		m := filterLine.FindStringSubmatch(line)
		if m == nil {
			if foundFirst && strings.TrimSpace(line) != "" {
				skipped = append(skipped, line)
			}
			continue
		}
		foundFirst = true
		flags, name, in, out := m[1], m[2], m[3], m[4]
		f := Filter{
			Name:        name,
			Timeline:    strings.Contains(flags, "T"),
			Slice:       strings.Contains(flags, "S"),
			Command:     strings.Contains(flags, "C"),
			Inputs:      in,
			Outputs:     out,
			Description: strings.TrimSpace(m[5]),
		}
		f.Video, f.Audio = filterMedia(in, out)
		filters[name] = f
	}
	return filters, skipped
}

// filterMedia classifies a filter by its pads. Sources ("|") and dynamic
// pads ("N") fall back to the other side; fully dynamic filters count as both.
func filterMedia(in, out string) (video, audio bool) {
	video = strings.Contains(in, "V")
	audio = strings.Contains(in, "A")
	if video || audio {
		return video, audio
	}
	video = strings.Contains(out, "V")
	audio = strings.Contains(out, "A")
	if video || audio {
		return video, audio
	}
	return true, true
}

// ParseCodecs parses the output of "ffmpeg -codecs". Only video and audio
// codecs are kept; subtitle and data codecs are dropped.
func ParseCodecs(listing string) (map[string]Codec, []string) {
	codecs := make(map[string]Codec)
	var skipped []string
	capture := false
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.Contains(line, "-------") {
			capture = true
			continue
		}
		if !capture || strings.TrimSpace(line) == "" {
			continue
		}
		m := codecLine.FindStringSubmatch(line)
		if m == nil {
			skipped = append(skipped, line)
			continue
		}
		flags := m[1]
		kind := flags[2]
		if kind != 'V' && kind != 'A' {
			continue
		}
		codecs[m[2]] = Codec{
			Name:        m[2],
			Decode:      flags[0] == 'D',
			Encode:      flags[1] == 'E',
			Video:       kind == 'V',
			Audio:       kind == 'A',
			IntraOnly:   flags[3] == 'I',
			Lossy:       flags[4] == 'L',
			Lossless:    flags[5] == 'S',
			Description: strings.TrimSpace(m[3]),
		}
	}
	return codecs, skipped
}

// ParsePixelFormats parses the output of "ffmpeg -pix_fmts".
func ParsePixelFormats(listing string) map[string]PixelFormat {
	formats := make(map[string]PixelFormat)
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		m := pixFmtLine.FindStringSubmatch(strings.TrimRight(scanner.Text(), "\r"))
		if m == nil {
			continue
		}
		flags := m[1]
		components, _ := strconv.Atoi(m[3])
		bpp, _ := strconv.Atoi(m[4])
		formats[m[2]] = PixelFormat{
			Name:         m[2],
			Input:        flags[0] == 'I',
			Output:       flags[1] == 'O',
			Hardware:     flags[2] == 'H',
			Paletted:     flags[3] == 'P',
			Bitstream:    flags[4] == 'B',
			Components:   components,
			BitsPerPixel: bpp,
			BitDepths:    m[5],
		}
	}
	return formats
}

// ParseVersion extracts the version token from "ffmpeg -version" output.
func ParseVersion(output string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(first)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(first)
}
