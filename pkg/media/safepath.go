package media

import (
	"fmt"
	"strings"
)

// reservedNames are device names that cannot be used as file names on Windows.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SafePath rewrites a slash separated relative path so every segment can be
// used unquoted in a URL and as a file name on common file systems. Unsafe
// bytes become _HH. The output only contains safe characters, so applying
// SafePath twice gives the same result as applying it once.
func SafePath(ref string) string {
	segments := strings.Split(ref, "/")
	for i, seg := range segments {
		segments[i] = safeSegment(seg)
	}
	return strings.Join(segments, "/")
}

func safeSegment(seg string) string {
	var sb strings.Builder
	sb.Grow(len(seg))
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if unsafeByte(c) {
			fmt.Fprintf(&sb, "_%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	out := sb.String()

	base, _, _ := strings.Cut(out, ".")
	if reservedNames[strings.ToUpper(base)] {
		out = "_" + out
	}
	return out
}

func unsafeByte(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '<', '>', ':', '"', '\\', '|', '?', '*', '~', '%', '#', ' ', '&', '+', '\'':
		return true
	}
	return false
}
