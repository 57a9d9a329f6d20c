package timeutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactPattern = regexp.MustCompile(`(\d+)([wdhms])`)

// ParseCompact parses compact duration strings like "1d2h30m", "1w" or
// "30s" by summing every (value, unit) pair it finds. An empty or
// unparseable string yields zero rather than an error; window generation
// treats a zero granularity as "nothing to do".
func ParseCompact(s string) time.Duration {
	if s == "" {
		return 0
	}
	var total time.Duration
	for _, m := range compactPattern.FindAllStringSubmatch(strings.ToLower(s), -1) {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "w":
			total += time.Duration(v) * 7 * 24 * time.Hour
		case "d":
			total += time.Duration(v) * 24 * time.Hour
		case "h":
			total += time.Duration(v) * time.Hour
		case "m":
			total += time.Duration(v) * time.Minute
		case "s":
			total += time.Duration(v) * time.Second
		}
	}
	return total
}

// FormatCompact renders a duration back into the compact grammar,
// omitting zero units. Zero renders as "0s".
func FormatCompact(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	mins := secs / 60
	secs %= 60

	var b strings.Builder
	if days > 0 {
		b.WriteString(strconv.FormatInt(days, 10))
		b.WriteByte('d')
	}
	if hours > 0 {
		b.WriteString(strconv.FormatInt(hours, 10))
		b.WriteByte('h')
	}
	if mins > 0 {
		b.WriteString(strconv.FormatInt(mins, 10))
		b.WriteByte('m')
	}
	if secs > 0 {
		b.WriteString(strconv.FormatInt(secs, 10))
		b.WriteByte('s')
	}
	return b.String()
}
