package twitch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/you/crossfeed/internal/core"
)

// defaultCheermotePrefixes are the globally available cheermote families.
// Channel-custom cheermotes still arrive with a bits total on the
// notification, so missing a prefix here only affects the mixed flag.
var defaultCheermotePrefixes = map[string]struct{}{
	"cheer":          {},
	"doodlecheer":    {},
	"biblethump":     {},
	"cheerwhal":      {},
	"corgo":          {},
	"uni":            {},
	"showlove":       {},
	"party":          {},
	"seemsgood":      {},
	"pride":          {},
	"kappa":          {},
	"frankerz":       {},
	"heyguys":        {},
	"dansgame":       {},
	"elegiggle":      {},
	"trihard":        {},
	"kreygasm":       {},
	"4head":          {},
	"swiftrage":      {},
	"notlikethis":    {},
	"failfish":       {},
	"vohiyo":         {},
	"pjsalt":         {},
	"mrdestructoid":  {},
	"bday":           {},
	"ripcheer":       {},
	"shamrock":       {},
	"streamlabs":     {},
	"bitboss":        {},
	"muxy":           {},
	"anonymouscheer": {},
}

var cheermoteTokenRe = regexp.MustCompile(`^([A-Za-z0-9]*?[A-Za-z])(\d+)$`)

// ExtractCheermotes scans a cheer message for cheermote tokens and
// aggregates their bits. Returns nil when the message carries none.
func ExtractCheermotes(message string) *core.CheermoteInfo {
	if message == "" {
		return nil
	}

	var (
		prefixes []string
		seen     = map[string]struct{}{}
		bits     int
	)
	for _, word := range strings.Fields(message) {
		m := cheermoteTokenRe.FindStringSubmatch(word)
		if m == nil {
			continue
		}
		prefix := strings.ToLower(m[1])
		if _, ok := defaultCheermotePrefixes[prefix]; !ok {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n <= 0 {
			continue
		}
		bits += n
		if _, dup := seen[prefix]; !dup {
			seen[prefix] = struct{}{}
			prefixes = append(prefixes, prefix)
		}
	}

	if len(prefixes) == 0 {
		return nil
	}
	return &core.CheermoteInfo{
		Prefixes: prefixes,
		Bits:     bits,
		IsMixed:  len(prefixes) > 1,
	}
}
