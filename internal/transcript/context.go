package transcript

import "strings"

// DefaultContextWindow is the trailing window, in seconds, used for story context.
const DefaultContextWindow = 180.0

// HeardContext is the recently heard part of the story at a playback time.
type HeardContext struct {
	Text              string          `json:"text"`
	WordCount         int             `json:"word_count"`
	CharacterMentions map[string]bool `json:"character_mentions"`
	ProgressPercent   float64         `json:"progress_percent"`
}

// HeardContext returns the words heard in the windowSeconds before currentTime.
// Character mentions are evaluated over the windowed text only.
// Times past the end of the book clamp to the end, so the window is the final stretch.
func (t *Transcript) HeardContext(currentTime, windowSeconds float64) HeardContext {
	if windowSeconds < 0 {
		windowSeconds = 0
	}
	end := t.WordOffset(currentTime)
	if currentTime > t.EstimatedDuration() {
		currentTime = t.EstimatedDuration()
		end = t.TotalWords()
	}
	start := t.WordOffset(max(0, currentTime-windowSeconds))

	folded := t.foldedText(start, end)
	mentions := make(map[string]bool, len(t.aliases))
	for key, forms := range t.aliases {
		mentions[key] = mentioned(folded, forms)
	}

	var progress float64
	if t.TotalWords() > 0 {
		progress = 100 * float64(end) / float64(t.TotalWords())
	}

	return HeardContext{
		Text:              t.Text(start, end),
		WordCount:         max(end-start, 0),
		CharacterMentions: mentions,
		ProgressPercent:   progress,
	}
}

// FullHeardContext returns every word heard from the start up to currentTime.
func (t *Transcript) FullHeardContext(currentTime float64) string {
	return t.Text(0, t.WordOffset(currentTime))
}

// CharacterAppeared reports whether name has been mentioned anywhere in the heard-so-far text.
// A canonical alias key matches any of its aliases; other names match literally. Both ignore case.
func (t *Transcript) CharacterAppeared(currentTime float64, name string) bool {
	heard := t.foldedText(0, t.WordOffset(currentTime))

	if forms, ok := t.aliases.Lookup(name); ok {
		return mentioned(heard, forms)
	}

	target := fold(strings.TrimSpace(name))
	return target != "" && strings.Contains(heard, target)
}
