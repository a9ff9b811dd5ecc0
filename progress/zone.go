package progress

import (
	"regexp"
	"strings"
)

// =============================================================================
// ZONE NORMALIZER
// =============================================================================
//
// Zone labels are authored inconsistently ("Zone 2", "Z-2", "2", "P5066-2").
// Equality is decided on a canonical numeric token, falling back to the full
// normalized string for zones that carry no number.

var (
	zonePattern      = regexp.MustCompile(`(?i)zone\s*[-_]?\s*(\d+)`)
	trailingNumber   = regexp.MustCompile(`(?:^|[^0-9a-z])(\d+)\s*$`)
	anyNumber        = regexp.MustCompile(`\d+`)
	codeSuffixNumber = regexp.MustCompile(`(?i)\b[a-z]+\d+-(\d+)\s*$`)
)

// NormalizeZone strips a leading project-code prefix ("<CODE> - ", "<CODE>-"
// or "<CODE> ", case-insensitive) and returns the lower-cased remainder.
func NormalizeZone(rawZone, projectCode string) string {
	zone := strings.TrimSpace(rawZone)
	code := strings.TrimSpace(projectCode)
	if code != "" && len(zone) > len(code) && strings.EqualFold(zone[:len(code)], code) {
		rest := zone[len(code):]
		for _, sep := range []string{" - ", "-", " "} {
			if strings.HasPrefix(rest, sep) {
				zone = rest[len(sep):]
				break
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(zone))
}

// ZoneFromText extracts a zone token from free text (an activity or KPI
// description) when the zone field itself is empty. Returns "" when no zone
// can be recognised.
func ZoneFromText(text, projectCode string) string {
	if m := zonePattern.FindStringSubmatch(text); m != nil {
		return "zone " + trimZeros(m[1])
	}
	if n := codeSuffix(text, projectCode); n != "" {
		return "zone " + n
	}
	if m := codeSuffixNumber.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return "zone " + trimZeros(m[1])
	}
	return ""
}

// EffectiveZone resolves the zone used for matching: the normalized zone
// label, or a zone recovered from the description when the label is empty.
// The full project code is stripped first, then the base code.
func EffectiveZone(zoneLabel, description, fullCode, baseCode string) string {
	zone := NormalizeZone(zoneLabel, fullCode)
	if baseCode != "" {
		zone = NormalizeZone(zone, baseCode)
	}
	if zone != "" {
		return zone
	}
	code := baseCode
	if code == "" {
		code = fullCode
	}
	return ZoneFromText(description, code)
}

// ExtractZoneNumber returns the canonical token used for zone equality:
//  1. the number following "zone"
//  2. a trailing standalone number
//  3. the first number anywhere
//  4. the normalized string itself
func ExtractZoneNumber(zone string) string {
	z := strings.ToLower(strings.TrimSpace(zone))
	if m := zonePattern.FindStringSubmatch(z); m != nil {
		return trimZeros(m[1])
	}
	if m := trailingNumber.FindStringSubmatch(z); m != nil {
		return trimZeros(m[1])
	}
	if m := anyNumber.FindString(z); m != "" {
		return trimZeros(m)
	}
	return z
}

// hasStandaloneNumber reports whether zone contains number as a whole token,
// not glued to letters or other digits ("zone 2" yes, "zone12" or "a2" no).
func hasStandaloneNumber(zone, number string) bool {
	if !isDigits(number) {
		return false
	}
	z := strings.ToLower(zone)
	for i := 0; i < len(z); {
		if !isDigit(z[i]) {
			i++
			continue
		}
		j := i
		for j < len(z) && isDigit(z[j]) {
			j++
		}
		before := i == 0 || !isAlnum(z[i-1])
		after := j == len(z) || !isAlnum(z[j])
		if before && after && trimZeros(z[i:j]) == number {
			return true
		}
		i = j
	}
	return false
}

// codeSuffix finds "<CODE>-<digits>" in text and returns the digits.
func codeSuffix(text, projectCode string) string {
	code := strings.ToLower(strings.TrimSpace(projectCode))
	if code == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for from := 0; ; {
		idx := strings.Index(lower[from:], code+"-")
		if idx < 0 {
			return ""
		}
		start := from + idx
		i := start + len(code) + 1
		j := i
		for j < len(lower) && isDigit(lower[j]) {
			j++
		}
		boundary := (start == 0 || !isAlnum(lower[start-1])) && (j == len(lower) || !isAlnum(lower[j]))
		if j > i && boundary {
			return trimZeros(lower[i:j])
		}
		from = start + 1
	}
}

// ZonesMatch applies the zone rule of the key matcher. An empty activity zone
// accepts any record.
func ZonesMatch(activityZone, kpiZone string) bool {
	if activityZone == "" {
		return true
	}
	if kpiZone == "" {
		return false
	}
	if activityZone == kpiZone {
		return true
	}

	an, kn := ExtractZoneNumber(activityZone), ExtractZoneNumber(kpiZone)
	if an != kn {
		return false
	}
	if !isDigits(an) {
		// No number on either side: the fallback token is the whole string.
		return true
	}
	if strings.Contains(activityZone, kpiZone) || strings.Contains(kpiZone, activityZone) {
		return true
	}
	return hasStandaloneNumber(activityZone, an) || hasStandaloneNumber(kpiZone, kn)
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" && s != "" {
		return "0"
	}
	return t
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlnum(b byte) bool { return isDigit(b) || (b >= 'a' && b <= 'z') }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
