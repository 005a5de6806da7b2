// Package jsonrepair sanitizes and recovers near-JSON text produced by
// language models. Models asked for a JSON object routinely wrap it in
// markdown fences, add prose around it, use typographic quotes, leave
// trailing commas, or get cut off mid-object by a token limit. Sanitize
// cleans the common artifacts; ParseWithRecovery layers increasingly
// aggressive recovery on top of a strict decode and never fails.
package jsonrepair

import (
	"regexp"
	"strings"
)

// Repair notes emitted by Sanitize, one per cleanup that actually fired.
const (
	NoteEmpty                 = "empty"
	NoteRemovedCodeFences     = "removed_code_fences"
	NoteNormalizedQuotes      = "normalized_quotes"
	NoteRemovedTrailingCommas = "removed_trailing_commas"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	smartQuotes = strings.NewReplacer(
		"“", `"`, // left double
		"”", `"`, // right double
		"‘", "'", // left single
		"’", "'", // right single
	)
)

// Sanitize applies best-effort cleanup to near-JSON text and returns the
// cleaned text plus notes for each step that changed something. The result
// is not guaranteed to be valid JSON; callers must still attempt a strict
// parse. Sanitize never fails and is idempotent on its own output; the
// worst case is "{}".
func Sanitize(raw string) (string, []string) {
	if raw == "" {
		return "{}", []string{NoteEmpty}
	}

	var notes []string

	text := strings.ReplaceAll(raw, "\ufeff", "")
	text = strings.ReplaceAll(text, "\r", "")

	// Models often fence the object in ```json blocks; slice to the object
	// inside the fence.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		start := strings.Index(trimmed, "{")
		end := fencedObjectEnd(trimmed, start)
		if start != -1 && end > start {
			text = trimmed[start : end+1]
			notes = append(notes, NoteRemovedCodeFences)
		}
	}

	if strings.ContainsAny(text, "“”‘’") {
		text = smartQuotes.Replace(text)
		notes = append(notes, NoteNormalizedQuotes)
	}

	// Stacked commas expose a fresh trailing comma after each removal,
	// so replace until the text stops changing.
	if cleaned := trailingCommaRe.ReplaceAllString(text, "$1"); cleaned != text {
		for cleaned != text {
			text = cleaned
			cleaned = trailingCommaRe.ReplaceAllString(text, "$1")
		}
		notes = append(notes, NoteRemovedTrailingCommas)
	}

	// Discard any prose preamble or epilogue around the outermost object.
	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	return text, notes
}

// fencedObjectEnd returns the index of the last '}' before the closing
// fence, falling back to the last '}' anywhere when the fence is unclosed.
func fencedObjectEnd(text string, start int) int {
	closing := strings.LastIndex(text, "```")
	if closing > start {
		return strings.LastIndex(text[:closing], "}")
	}
	return strings.LastIndex(text, "}")
}
