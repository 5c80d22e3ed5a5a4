package transcript

import "math"

// DefaultWordsPerMinute is the narration rate assumed when none is configured.
const DefaultWordsPerMinute = 120

// offsetEpsilon absorbs float error so WordOffset(TimeAt(n)) == n.
const offsetEpsilon = 1e-9

// TimeIndex converts between playback time and word offsets using an estimated narration rate.
type TimeIndex struct {
	totalWords     int
	wordsPerSecond float64
}

// NewTimeIndex returns a TimeIndex for totalWords words narrated at wordsPerMinute.
// A non-positive rate falls back to DefaultWordsPerMinute.
func NewTimeIndex(totalWords int, wordsPerMinute float64) TimeIndex {
	if wordsPerMinute <= 0 || math.IsNaN(wordsPerMinute) || math.IsInf(wordsPerMinute, 0) {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return TimeIndex{
		totalWords:     max(totalWords, 0),
		wordsPerSecond: wordsPerMinute / 60,
	}
}

// TotalWords returns the number of words the index covers.
func (ti TimeIndex) TotalWords() int { return ti.totalWords }

// WordsPerSecond returns the narration rate.
func (ti TimeIndex) WordsPerSecond() float64 { return ti.wordsPerSecond }

// WordOffset returns floor(seconds * wordsPerSecond) clamped to [0, TotalWords].
// Negative and NaN inputs map to 0.
func (ti TimeIndex) WordOffset(seconds float64) int {
	if !(seconds > 0) {
		return 0
	}
	f := math.Floor(seconds*ti.wordsPerSecond + offsetEpsilon)
	if f >= float64(ti.totalWords) {
		return ti.totalWords
	}
	return int(f)
}

// TimeAt returns the playback time at which the word at offset starts.
func (ti TimeIndex) TimeAt(offset int) float64 {
	return float64(offset) / ti.wordsPerSecond
}

// EstimatedDuration returns the total narration time in seconds.
func (ti TimeIndex) EstimatedDuration() float64 {
	return ti.TimeAt(ti.totalWords)
}
