package sanitize

import (
	"strings"

	liberr "github.com/mythologiq/gg-core/errors"
)

// Config tunes an OutputSanitizer's behavior.
type Config struct {
	RedactPII              bool
	FilterContent          bool
	MaxLength              int
	PIIConfidenceThreshold float32
	RedactTypes            []Type
}

// DefaultConfig redacts SSNs, card numbers, email addresses, phone numbers,
// API keys, and passport, bank-account and medical-record numbers at a 0.7
// confidence floor and caps output at 100,000 characters.
func DefaultConfig() Config {
	return Config{
		RedactPII:              true,
		FilterContent:          true,
		MaxLength:              100_000,
		PIIConfidenceThreshold: 0.7,
		RedactTypes: []Type{
			TypeSSN, TypeCreditCard, TypeEmail, TypePhone,
			TypeAPIKey, TypePassport, TypeBankAccount, TypeMedicalRecord,
		},
	}
}

func (c Config) shouldRedact(t Type) bool {
	for _, want := range c.RedactTypes {
		if want == t {
			return true
		}
	}
	return false
}

// Result reports what a Sanitize call changed.
type Result struct {
	Output          string
	Modified        bool
	PIIRedacted     int
	ContentFiltered int
	Warnings        []string
}

var harmfulPatterns = [][2]string{
	{"i want to kill myself", "If you're having thoughts of self-harm, please reach out to a crisis helpline: 988"},
	{"i want to die", "If you're having thoughts of self-harm, please reach out to a crisis helpline: 988"},
	{"how to make a bomb", "[CONTENT FILTERED: Dangerous content]"},
	{"how to create a virus", "[CONTENT FILTERED: Dangerous content]"},
}

// Sanitizer combines PII detection, content filtering, and output-format
// validation for model-generated text.
type Sanitizer struct {
	detector *Detector
	cfg      Config
}

// New builds a Sanitizer per cfg.
func New(cfg Config) *Sanitizer {
	return &Sanitizer{detector: NewDetector(), cfg: cfg}
}

// NewDefault builds a Sanitizer with DefaultConfig.
func NewDefault() *Sanitizer {
	return New(DefaultConfig())
}

// Sanitize truncates, redacts PII from, and content-filters output.
func (s *Sanitizer) Sanitize(output string) Result {
	result := output
	modified := false
	piiRedacted := 0
	contentFiltered := 0
	var warnings []string

	if len(result) > s.cfg.MaxLength {
		result = result[:s.cfg.MaxLength]
		warnings = append(warnings, lengthWarning(s.cfg.MaxLength))
		modified = true
	}

	if s.cfg.RedactPII {
		matches := s.detector.Detect(result)

		var b strings.Builder
		prev := 0
		for _, m := range matches {
			if !s.cfg.shouldRedact(m.Type) || m.Confidence < s.cfg.PIIConfidenceThreshold {
				continue
			}
			if m.Start < prev || m.End > len(result) {
				continue
			}
			b.WriteString(result[prev:m.Start])
			b.WriteString("[REDACTED:")
			b.WriteString(m.Type.Name())
			b.WriteString("]")
			prev = m.End
			piiRedacted++
			modified = true
		}
		if piiRedacted > 0 {
			b.WriteString(result[prev:])
			result = b.String()
		}
	}

	if s.cfg.FilterContent {
		filtered, count := filterContentPatterns(result)
		if count > 0 {
			result = filtered
			contentFiltered = count
			modified = true
		}
	}

	return Result{
		Output:          result,
		Modified:        modified,
		PIIRedacted:     piiRedacted,
		ContentFiltered: contentFiltered,
		Warnings:        warnings,
	}
}

func lengthWarning(max int) string {
	return "output truncated to " + itoa(max) + " characters"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func filterContentPatterns(text string) (string, int) {
	result := text
	count := 0
	lower := strings.ToLower(result)

	for _, p := range harmfulPatterns {
		pattern, replacement := p[0], p[1]
		if strings.Contains(lower, pattern) {
			result = replaceCaseInsensitive(result, pattern, replacement)
			lower = strings.ToLower(result)
			count++
		}
	}
	return result, count
}

func replaceCaseInsensitive(text, pattern, replacement string) string {
	lower := strings.ToLower(text)
	lowerPattern := strings.ToLower(pattern)

	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lower[i:], lowerPattern)
		if idx < 0 {
			b.WriteString(text[i:])
			break
		}
		b.WriteString(text[i : i+idx])
		b.WriteString(replacement)
		i += idx + len(lowerPattern)
	}
	return b.String()
}

const maxPIILength = 100

// StreamingState carries cross-chunk detection state for SanitizeChunk.
type StreamingState struct {
	buffer         strings.Builder
	processedUntil int
}

// SanitizeChunk redacts PII from chunk, tracking a rolling buffer so PII
// split across chunk boundaries is still detected.
func (s *Sanitizer) SanitizeChunk(chunk string, state *StreamingState) string {
	result := chunk
	bufStart := state.buffer.Len()
	state.buffer.WriteString(chunk)
	buffer := state.buffer.String()

	if s.cfg.RedactPII {
		matches := s.detector.Detect(buffer)

		for _, m := range matches {
			if m.Start < state.processedUntil {
				continue
			}
			if m.End > len(buffer) {
				continue
			}

			replacement := "[REDACTED:" + m.Type.Name() + "]"
			chunkStart := saturatingSub(m.Start, bufStart)
			chunkEnd := saturatingSub(m.End, bufStart)

			if chunkStart < len(result) && chunkEnd <= len(result) && chunkStart >= 0 {
				result = result[:chunkStart] + replacement + result[chunkEnd:]
			}
			state.processedUntil = m.End
		}
	}

	if state.buffer.Len() > 1000 {
		maxTrim := state.buffer.Len() - 500
		safeTrim := findSafeTrimPoint(buffer, maxTrim)
		if safeTrim > 0 {
			trimmed := buffer[safeTrim:]
			state.buffer.Reset()
			state.buffer.WriteString(trimmed)
			state.processedUntil = saturatingSub(state.processedUntil, safeTrim)
		}
	}

	return result
}

func saturatingSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}

// findSafeTrimPoint locates a word/punctuation boundary near maxTrim so
// trimming the buffer can't split a PII pattern in progress.
func findSafeTrimPoint(buffer string, maxTrim int) int {
	if len(buffer) <= maxPIILength {
		return 0
	}

	candidate := maxTrim
	if ceiling := len(buffer) - maxPIILength; candidate > ceiling {
		candidate = ceiling
	}

	searchStart := saturatingSub(candidate, 20)
	searchEnd := candidate + 20
	if searchEnd > len(buffer) {
		searchEnd = len(buffer)
	}

	window := buffer[searchStart:searchEnd]
	for i := len(window) - 1; i >= 0; i-- {
		c := window[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '.' || c == ',' || c == ';' || c == ':' {
			safePos := searchStart + i
			if safePos > 0 && safePos <= maxTrim {
				return safePos
			}
			break
		}
	}

	fallback := len(buffer) - maxPIILength*2
	if fallback < 0 {
		fallback = 0
	}
	if fallback > maxTrim {
		return maxTrim
	}
	return fallback
}

// ValidateFormat rejects output with null bytes, excessive phrase
// repetition, or tell-tale mojibake from a broken encoding pipeline.
func (s *Sanitizer) ValidateFormat(output string) error {
	if strings.ContainsRune(output, '\x00') {
		return liberr.New(liberr.MinPkgSanitize+1, liberr.KindInvalidInput, "output contains null characters")
	}
	if hasExcessiveRepetition(output) {
		return liberr.New(liberr.MinPkgSanitize+2, liberr.KindInvalidInput, "output contains excessive repetition")
	}
	if strings.Contains(output, "Ã") || strings.Contains(output, "Â") {
		return liberr.New(liberr.MinPkgSanitize+3, liberr.KindInvalidInput, "output may have encoding issues")
	}
	return nil
}

// hasExcessiveRepetition flags output where some 3-word phrase repeats
// more than 5 times, a common model-degradation signature.
func hasExcessiveRepetition(text string) bool {
	words := strings.Fields(text)
	if len(words) < 10 {
		return false
	}

	counts := make(map[string]int)
	for i := 0; i+3 <= len(words); i++ {
		phrase := strings.Join(words[i:i+3], " ")
		counts[phrase]++
		if counts[phrase] > 5 {
			return true
		}
	}
	return false
}
