package whisper

import "strings"

// wrapText splits text into lines of at most maxChars, matching the
// max_len/split_on_word option pair: when splitOnWord is true, breaks only
// fall on whitespace, so a single word longer than maxChars stays whole on a
// line of its own; otherwise a line may be cut mid-word. maxChars <= 0
// disables wrapping.
func wrapText(text string, maxChars int, splitOnWord bool) []string {
	if maxChars <= 0 {
		return []string{text}
	}

	if !splitOnWord {
		return wrapByChars(text, maxChars)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var lines []string
	var current strings.Builder

	for _, w := range words {
		switch {
		case current.Len() == 0:
			current.WriteString(w)
		case current.Len()+1+len(w) > maxChars:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(w)
		default:
			current.WriteByte(' ')
			current.WriteString(w)
		}
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

func wrapByChars(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{text}
	}

	var lines []string

	for len(runes) > maxChars {
		lines = append(lines, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}

	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}

	return lines
}
