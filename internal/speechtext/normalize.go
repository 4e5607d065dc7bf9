// Package speechtext converts raw assistant markdown into text that is safe
// and pleasant to speak aloud.
//
// Normalization is a bounded set of pattern substitutions, not a markdown
// parser: fenced code blocks and inline code spans are replaced or elided,
// structural markers (headings, emphasis, links, list bullets, horizontal
// rules) are stripped down to their readable content, whitespace is
// collapsed, and overly long output is truncated at a sentence boundary.
//
// Normalize is pure and total: it never fails and produces the same output
// for the same input and options.
package speechtext

import (
	"regexp"
	"strings"
)

// CodeBlockPlaceholder is spoken in place of every fenced code block.
const CodeBlockPlaceholder = "code block omitted"

// InlineCodePlaceholder is spoken in place of inline code spans that are too
// long to be worth hearing verbatim.
const InlineCodePlaceholder = "code"

// TruncationSuffix is appended whenever output is cut to fit Options.MaxLength.
const TruncationSuffix = " ... Response truncated for speech."

// inlineCodeKeepMax is the longest inline code span that is read out as-is.
// Short spans are likely identifiers worth hearing; anything longer becomes
// the word "code".
const inlineCodeKeepMax = 20

// sentenceCutbackWindow is the fraction of the truncated window, measured
// from its end, in which a sentence-ending period is honoured as the cut
// point instead of a hard character cut.
const sentenceCutbackWindow = 0.2

// Options bounds the normalization behaviour for one call.
type Options struct {
	// ExcludeCodeBlocks replaces fenced code blocks and long inline code
	// spans with spoken placeholders.
	ExcludeCodeBlocks bool

	// MaxLength caps the output length in characters. Zero means unlimited.
	// When the cap applies, TruncationSuffix is appended on top of it.
	MaxLength int
}

// DefaultOptions returns the options used when configuration supplies none.
func DefaultOptions() Options {
	return Options{ExcludeCodeBlocks: true}
}

var (
	fencedCodeRe  = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCodeRe  = regexp.MustCompile("`([^`\n]+)`")
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicRe      = regexp.MustCompile(`\*([^*\n]+)\*|\b_([^_\n]+)_\b`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	horizRuleRe   = regexp.MustCompile(`(?m)^[ \t]*(-{3,}|\*{3,}|_{3,})[ \t]*$`)
	listMarkerRe  = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
	tripleBlankRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe    = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize transforms raw assistant text into speech-safe text.
//
// The pipeline order is fixed: code handling, markdown stripping, whitespace
// collapse, then truncation. Output length never exceeds
// Options.MaxLength + len(TruncationSuffix) when MaxLength is set.
func Normalize(text string, opts Options) string {
	out := text

	if opts.ExcludeCodeBlocks {
		out = fencedCodeRe.ReplaceAllString(out, CodeBlockPlaceholder)
		out = inlineCodeRe.ReplaceAllStringFunc(out, func(span string) string {
			content := strings.Trim(span, "`")
			if len([]rune(content)) <= inlineCodeKeepMax {
				return content
			}
			return InlineCodePlaceholder
		})
	}

	out = headingRe.ReplaceAllString(out, "")
	out = boldRe.ReplaceAllString(out, "$1$2")
	out = italicRe.ReplaceAllString(out, "$1$2")
	out = linkRe.ReplaceAllString(out, "$1")
	out = horizRuleRe.ReplaceAllString(out, "")
	// Stripping an outer list marker can expose a nested one at line start,
	// so this runs to a fixed point.
	for {
		next := listMarkerRe.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}

	out = tripleBlankRe.ReplaceAllString(out, "\n\n")
	out = spaceRunRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	if opts.MaxLength > 0 {
		out = truncate(out, opts.MaxLength)
	}
	return out
}

// truncate cuts text to max characters, preferring to end just after a
// sentence period that falls within the trailing portion of the window, and
// appends TruncationSuffix.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := runes[:max]
	windowStart := max - int(float64(max)*sentenceCutbackWindow)
	if idx := lastPeriod(cut, windowStart); idx >= 0 {
		cut = cut[:idx+1]
	}
	return string(cut) + TruncationSuffix
}

// lastPeriod returns the index of the last '.' in runes at or after from,
// or -1 if none exists in that range.
func lastPeriod(runes []rune, from int) int {
	for i := len(runes) - 1; i >= from && i >= 0; i-- {
		if runes[i] == '.' {
			return i
		}
	}
	return -1
}
