package relay

import (
	"strings"
	"unicode"
)

// SentenceSplitter accumulates assistant text deltas and yields complete
// sentences ready for synthesis. Flush returns whatever is buffered at
// the end of a turn and resets the splitter.
//
// The boundary policy is injectable so deployments can swap in a
// language-aware splitter without touching the relay.
type SentenceSplitter interface {
	Feed(delta string) []string
	Flush() string
}

// PunctuationSplitter cuts on terminal punctuation. Good enough for
// synthesized speech pacing; abbreviations ("Mr.") cause an early cut,
// which costs one extra synthesis call, nothing more.
type PunctuationSplitter struct {
	buf strings.Builder
}

func NewPunctuationSplitter() *PunctuationSplitter {
	return &PunctuationSplitter{}
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func (p *PunctuationSplitter) Feed(delta string) []string {
	var out []string
	for _, r := range delta {
		p.buf.WriteRune(r)
		if isTerminal(r) {
			if s := strings.TrimSpace(p.buf.String()); hasContent(s) {
				out = append(out, s)
			}
			p.buf.Reset()
		}
	}
	return out
}

func (p *PunctuationSplitter) Flush() string {
	s := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	if !hasContent(s) {
		return ""
	}
	return s
}

// hasContent reports whether s carries anything worth speaking, not
// just punctuation or whitespace.
func hasContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
