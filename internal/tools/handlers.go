package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/library"
	"github.com/listenupapp/listenup-companion/internal/playback"
	"github.com/listenupapp/listenup-companion/internal/search"
)

// Spoken replies that do not depend on arguments.
const (
	ReplyPaused           = "Paused"
	ReplyPlaying          = "Playing"
	ReplyNextAudiobook    = "Next audiobook"
	ReplyPrevAudiobook    = "Previous audiobook"
	ReplySceneNotFound    = "I couldn't find that scene in the audiobook."
	ReplySearchFailed     = "I couldn't search the audiobook right now."
	ReplyNoEarlierMention = "I don't recall that being mentioned yet in what we've heard."
)

// scenePreviewRunes bounds the preview spoken after navigating.
const scenePreviewRunes = 80

func (d *Dispatcher) currentTime() float64 {
	return d.env.Playback.CurrentTime()
}

// volume returns the current book's transcript indexes, or an Unavailable error.
func (d *Dispatcher) volume() (library.Book, *library.Volume, error) {
	if d.env.Cursor == nil {
		return library.Book{}, nil, errors.Unavailable("no audiobook library loaded")
	}
	book, vol := d.env.Cursor.Current()
	if vol == nil {
		return book, nil, errors.Unavailable(fmt.Sprintf("no transcript available for %q", book.Title))
	}
	return book, vol, nil
}

func (d *Dispatcher) send(cmd playback.Command) error {
	if err := d.env.Sender.Send(cmd); err != nil {
		return errors.Wrapf(err, errors.CodeUnavailable, "send %s", cmd.Action)
	}
	return nil
}

func (d *Dispatcher) currentAudiobookInfo(_ context.Context, _ noArgs) (string, error) {
	if d.env.Cursor == nil {
		return "", errors.Unavailable("no audiobook library loaded")
	}
	book, _ := d.env.Cursor.Current()
	return fmt.Sprintf("Title: %s, Author: %s", book.Title, book.Author), nil
}

func (d *Dispatcher) storyContext(_ context.Context, _ noArgs) (string, error) {
	book, vol, err := d.volume()
	if err != nil {
		return "", err
	}

	t := d.currentTime()
	heard := vol.Transcript.HeardContext(t, d.env.ContextWindow)
	d.logger.Debug("story context",
		"book_id", book.ID,
		"current_time", t,
		"words", heard.WordCount,
		"progress_percent", heard.ProgressPercent,
	)
	return heard.Text, nil
}

func (d *Dispatcher) characterAppeared(_ context.Context, args CharacterArgs) (string, error) {
	_, vol, err := d.volume()
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(args.CharacterName)
	if vol.Transcript.CharacterAppeared(d.currentTime(), name) {
		return fmt.Sprintf("yes, %s has appeared in the story", name), nil
	}
	return fmt.Sprintf("no, %s has not been mentioned yet (avoid spoilers!)", name), nil
}

func (d *Dispatcher) pause(_ context.Context, _ noArgs) (string, error) {
	if err := d.send(playback.Pause()); err != nil {
		return "", err
	}
	d.resetCoordinator()
	return ReplyPaused, nil
}

func (d *Dispatcher) resume(_ context.Context, _ noArgs) (string, error) {
	if err := d.send(playback.Resume()); err != nil {
		return "", err
	}
	d.resetCoordinator()
	return ReplyPlaying, nil
}

func (d *Dispatcher) resetCoordinator() {
	if d.env.Coordinator != nil {
		d.env.Coordinator.Reset()
	}
}

func (d *Dispatcher) setSpeed(_ context.Context, args SpeedArgs) (string, error) {
	cmd := playback.SetSpeed(*args.Speed)
	if err := d.send(cmd); err != nil {
		return "", err
	}
	return "Speed " + formatSpeed(*cmd.Speed) + "x", nil
}

func (d *Dispatcher) skip(_ context.Context, args SkipArgs) (string, error) {
	seconds := *args.Seconds
	target := max(0, d.currentTime()+float64(seconds))
	if err := d.send(playback.Seek(target)); err != nil {
		return "", err
	}
	return skipReply(seconds), nil
}

func (d *Dispatcher) next(_ context.Context, _ noArgs) (string, error) {
	if d.env.Cursor == nil {
		return "", errors.Unavailable("no audiobook library loaded")
	}
	if err := d.send(playback.NextAudiobook()); err != nil {
		return "", err
	}
	book, _ := d.env.Cursor.Next()
	d.logger.Info("switched audiobook", "book_id", book.ID, "title", book.Title)
	return ReplyNextAudiobook, nil
}

func (d *Dispatcher) previous(_ context.Context, _ noArgs) (string, error) {
	if d.env.Cursor == nil {
		return "", errors.Unavailable("no audiobook library loaded")
	}
	if err := d.send(playback.PreviousAudiobook()); err != nil {
		return "", err
	}
	book, _ := d.env.Cursor.Previous()
	d.logger.Info("switched audiobook", "book_id", book.ID, "title", book.Title)
	return ReplyPrevAudiobook, nil
}

// navigate asks the scene searcher where the description happens and seeks there.
// Scorer failures are spoken as a search failure. A missing scorer is returned as
// a configuration error.
func (d *Dispatcher) navigate(ctx context.Context, args SceneArgs) (string, error) {
	book, vol, err := d.volume()
	if err != nil {
		return "", err
	}
	if vol.Scene == nil {
		return "", errors.Configuration("scene search is not configured")
	}

	t := d.currentTime()
	res, err := vol.Scene.FindScene(ctx, args.Description, t)
	switch {
	case errors.Is(err, errors.ErrConfiguration):
		return "", err
	case err != nil:
		d.logger.Warn("scene search failed", "book_id", book.ID, "query", args.Description, "error", err)
		return ReplySearchFailed, nil
	case !res.Found:
		return ReplySceneNotFound, nil
	}

	if err := d.send(playback.Seek(res.Time)); err != nil {
		return "", err
	}
	d.logger.Info("navigated to scene",
		"book_id", book.ID,
		"time", res.Time,
		"chunk_id", res.ChunkID,
		"confidence", res.Confidence,
	)
	return "Found it: " + scenePreview(res.Preview) + "...", nil
}

// searchEarlier looks only at chunks the listener has fully heard.
func (d *Dispatcher) searchEarlier(ctx context.Context, args TopicArgs) (string, error) {
	if d.env.Earlier == nil || d.env.Cursor == nil {
		return ReplySearchFailed, nil
	}
	book, _ := d.env.Cursor.Current()

	hits, err := d.env.Earlier.SearchEarlier(ctx, search.EarlierParams{
		BookID:      book.ID,
		Topic:       args.Topic,
		CurrentTime: d.currentTime(),
		Limit:       1,
	})
	if err != nil {
		d.logger.Warn("earlier context search failed", "book_id", book.ID, "topic", args.Topic, "error", err)
		return ReplySearchFailed, nil
	}
	if len(hits) == 0 {
		return ReplyNoEarlierMention, nil
	}
	return "Earlier mention: " + hits[0].Preview, nil
}

// formatSpeed renders whole speeds with one decimal: 2 as "2.0", 1.25 as "1.25".
func formatSpeed(s float64) string {
	out := strconv.FormatFloat(s, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// skipReply renders skips of a minute or more in whole minutes.
func skipReply(seconds int) string {
	direction := "back"
	if seconds > 0 {
		direction = "forward"
	}
	abs := seconds
	if abs < 0 {
		abs = -abs
	}
	if abs >= 60 {
		minutes := abs / 60
		unit := "minute"
		if minutes > 1 {
			unit = "minutes"
		}
		return fmt.Sprintf("Skipped %s %d %s", direction, minutes, unit)
	}
	return fmt.Sprintf("Skipped %s %d seconds", direction, abs)
}

func scenePreview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) > scenePreviewRunes {
		r = r[:scenePreviewRunes]
	}
	return string(r)
}
