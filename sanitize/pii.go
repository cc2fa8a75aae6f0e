// Package sanitize detects and redacts personally identifiable
// information in model output, filters a small set of harmful content
// patterns, and validates output format before it reaches a caller.
package sanitize

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Type classifies a kind of detected PII.
type Type uint8

const (
	TypeCreditCard Type = iota
	TypeSSN
	TypeEmail
	TypePhone
	TypeIPAddress
	TypeMACAddress
	TypeDateOfBirth
	TypeAddress
	TypePassport
	TypeDriverLicense
	TypeBankAccount
	TypeMedicalRecord
	TypeAPIKey
)

// Name is the human-readable label used in redaction markers.
func (t Type) Name() string {
	switch t {
	case TypeCreditCard:
		return "Credit Card"
	case TypeSSN:
		return "Social Security Number"
	case TypeEmail:
		return "Email Address"
	case TypePhone:
		return "Phone Number"
	case TypeIPAddress:
		return "IP Address"
	case TypeMACAddress:
		return "MAC Address"
	case TypeDateOfBirth:
		return "Date of Birth"
	case TypeAddress:
		return "Street Address"
	case TypePassport:
		return "Passport Number"
	case TypeDriverLicense:
		return "Driver's License"
	case TypeBankAccount:
		return "Bank Account"
	case TypeMedicalRecord:
		return "Medical Record"
	case TypeAPIKey:
		return "API Key"
	default:
		return "Unknown"
	}
}

// Severity ranks how sensitive a PII type is, 5 being the most sensitive.
func (t Type) Severity() uint8 {
	switch t {
	case TypeSSN, TypeCreditCard, TypePassport, TypeBankAccount, TypeMedicalRecord, TypeAPIKey:
		return 5
	case TypeDriverLicense, TypeDateOfBirth:
		return 4
	case TypeEmail, TypePhone, TypeAddress:
		return 3
	default:
		return 2
	}
}

// Match is one detected PII instance within a text.
type Match struct {
	Type       Type
	Text       string
	Start      int
	End        int
	Confidence float32
}

type patternEntry struct {
	typ Type
	re  *regexp.Regexp
}

func buildPatterns() []patternEntry {
	return []patternEntry{
		{TypeCreditCard, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
		{TypeCreditCard, regexp.MustCompile(`\b\d{13,19}\b`)},
		{TypeSSN, regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)},
		{TypeEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{TypePhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)},
		{TypePhone, regexp.MustCompile(`\b\+?[1-9]\d{1,14}\b`)},
		{TypeIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
		{TypeIPAddress, regexp.MustCompile(`\b(?:[a-fA-F0-9]{1,4}:){7}[a-fA-F0-9]{1,4}\b`)},
		{TypeMACAddress, regexp.MustCompile(`\b(?:[a-fA-F0-9]{2}[:-]){5}[a-fA-F0-9]{2}\b`)},
		{TypeDateOfBirth, regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)},
		{TypeDateOfBirth, regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`)},
		{TypeAddress, regexp.MustCompile(`\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct)\b`)},
		{TypePassport, regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
		{TypePassport, regexp.MustCompile(`\b\d{9}\b`)},
		{TypeDriverLicense, regexp.MustCompile(`\b[A-Z]\d{7,12}\b`)},
		{TypeDriverLicense, regexp.MustCompile(`\b\d{7,12}[A-Z]\b`)},
		{TypeBankAccount, regexp.MustCompile(`\b\d{8,17}\b`)},
		{TypeMedicalRecord, regexp.MustCompile(`\bMRN[:\s]?\d{6,10}\b`)},
		{TypeMedicalRecord, regexp.MustCompile(`\b\d{2}[A-Z]\d{5}[A-Z]\d{2}\b`)},
		{TypeAPIKey, regexp.MustCompile(`\b(?:api[_-]?key|token|secret|auth)[_-]?[a-zA-Z0-9]{16,}\b`)},
		{TypeAPIKey, regexp.MustCompile(`\bsk-[a-zA-Z0-9]{20,}\b`)},
		{TypeAPIKey, regexp.MustCompile(`\bghp_[a-zA-Z0-9]{36}\b`)},
		{TypeAPIKey, regexp.MustCompile(`\bxox[baprs]-[a-zA-Z0-9-]{10,}\b`)},
	}
}

func calculateConfidence(t Type, text string) float32 {
	switch t {
	case TypeEmail:
		if strings.Contains(text, "@") && strings.Contains(text, ".") {
			return 0.95
		}
		return 0.7
	case TypeCreditCard:
		return 0.95
	case TypeSSN:
		digits := digitsOnly(text)
		if len(digits) == 9 {
			area := digits[0:3]
			if area != "000" && area != "666" && area < "900" {
				return 0.9
			}
			return 0.5
		}
		return 0.6
	case TypePhone:
		if strings.HasPrefix(text, "+") || len(digitsOnly(text)) == 10 {
			return 0.85
		}
		return 0.6
	case TypeAPIKey:
		if strings.HasPrefix(text, "sk-") || strings.HasPrefix(text, "ghp_") || strings.HasPrefix(text, "xox") {
			return 0.98
		}
		return 0.7
	default:
		return 0.75
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhnCheck validates a digit string against the Luhn checksum used by
// credit card numbers.
func luhnCheck(number string) bool {
	digits := make([]int, 0, len(number))
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// removeOverlaps collapses overlapping matches, keeping the
// highest-confidence match per overlapping run. matches must be sorted by
// Start.
func removeOverlaps(matches []Match) []Match {
	if len(matches) <= 1 {
		return matches
	}

	result := make([]Match, 0, len(matches))
	current := matches[0]
	for _, m := range matches[1:] {
		if m.Start < current.End {
			if m.Confidence > current.Confidence {
				current = m
			}
			continue
		}
		result = append(result, current)
		current = m
	}
	result = append(result, current)
	return result
}

// Detector finds PII in text using compiled regex patterns plus a Luhn
// check for candidate credit card numbers.
type Detector struct {
	patterns             []patternEntry
	validateCreditCards bool
}

// NewDetector builds a Detector with the standard pattern set.
func NewDetector() *Detector {
	return &Detector{patterns: buildPatterns(), validateCreditCards: true}
}

// Detect returns every non-overlapping PII match in text, normalizing to
// NFKC first so visually similar Unicode characters can't bypass
// detection.
func (d *Detector) Detect(text string) []Match {
	normalized := norm.NFKC.String(text)

	var matches []Match
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(normalized, -1) {
			start, end := loc[0], loc[1]
			matched := normalized[start:end]

			if p.typ == TypeCreditCard && d.validateCreditCards {
				if !luhnCheck(digitsOnly(matched)) {
					continue
				}
			}

			matches = append(matches, Match{
				Type:       p.typ,
				Text:       matched,
				Start:      start,
				End:        end,
				Confidence: calculateConfidence(p.typ, matched),
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return removeOverlaps(matches)
}

// ContainsPII reports whether text matches any PII pattern, without
// computing confidence scores or resolving overlaps.
func (d *Detector) ContainsPII(text string) bool {
	normalized := norm.NFKC.String(text)
	for _, p := range d.patterns {
		if p.re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// Redact replaces every detected PII span in text with a
// "[REDACTED:<type>]" marker.
func (d *Detector) Redact(text string) string {
	normalized := norm.NFKC.String(text)
	matches := d.Detect(normalized)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	prev := 0
	for _, m := range matches {
		if m.Start < prev || m.End > len(normalized) {
			continue
		}
		b.WriteString(normalized[prev:m.Start])
		b.WriteString("[REDACTED:")
		b.WriteString(m.Type.Name())
		b.WriteString("]")
		prev = m.End
	}
	b.WriteString(normalized[prev:])
	return b.String()
}
