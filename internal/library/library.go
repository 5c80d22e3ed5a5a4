// Package library loads the audiobook manifest and builds the per-book transcript indexes.
package library

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/scene"
	"github.com/listenupapp/listenup-companion/internal/search"
	"github.com/listenupapp/listenup-companion/internal/transcript"
)

// UnknownBookID identifies the placeholder entry used when no manifest is available.
const UnknownBookID = "unknown"

// maxConcurrentLoads bounds how many transcripts are read and indexed at once.
const maxConcurrentLoads = 4

// Book is one manifest entry.
type Book struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Duration       float64 `json:"duration"`
	TranscriptFile string  `json:"transcript_file,omitempty"`
	// AliasFile names a YAML character table for this book, relative to the
	// transcript directory unless absolute. It replaces the library-wide table.
	AliasFile      string  `json:"alias_file,omitempty"`
}

// TranscriptFileName returns the configured transcript file, or derives one from the ID:
// "snow-white-001" becomes "snow_white_trans.txt".
func (b Book) TranscriptFileName() string {
	if b.TranscriptFile != "" {
		return b.TranscriptFile
	}
	base := b.ID
	if i := strings.LastIndex(base, "-"); i >= 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, "-", "_") + "_trans.txt"
}

// Volume is a book whose transcript was loaded, with its indexes.
type Volume struct {
	Book
	Transcript *transcript.Transcript
	Chunks     *transcript.ChunkIndex
	Scene      *scene.Searcher
}

// Options configures Load.
type Options struct {
	ManifestPath   string
	TranscriptDir  string
	WordsPerMinute float64
	ChunkSize      int
	ChunkOverlap   int
	// Aliases overrides the built-in character table when non-nil.
	Aliases transcript.Aliases
	// Scene configures each volume's scene searcher.
	Scene scene.Options
	// Index, when set, receives every volume's chunks.
	Index  *search.SearchIndex
	Logger *slog.Logger
}

// Library is the loaded, read-only set of audiobooks.
type Library struct {
	books   []Book
	volumes map[string]*Volume
}

// Load reads the manifest and loads every book's transcript concurrently.
// A missing or unreadable manifest yields a single "Unknown" book. A missing
// transcript leaves that book without a Volume. A transcript directory that
// does not exist is a configuration error.
func Load(ctx context.Context, opts Options) (*Library, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = transcript.DefaultChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = transcript.DefaultChunkOverlap
	}

	info, err := os.Stat(opts.TranscriptDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Configurationf("transcript directory does not exist: %s", opts.TranscriptDir)
		}
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "stat transcript directory %s", opts.TranscriptDir)
	}
	if !info.IsDir() {
		return nil, errors.Configurationf("transcript path is not a directory: %s", opts.TranscriptDir)
	}

	books, err := LoadManifest(opts.ManifestPath)
	if err != nil {
		logger.Error("failed to load audiobook manifest, using placeholder",
			"path", opts.ManifestPath,
			"error", err,
		)
		books = []Book{placeholder()}
	} else {
		logger.Info("loaded audiobook manifest", "path", opts.ManifestPath, "books", len(books))
	}

	lib := &Library{
		books:   books,
		volumes: make(map[string]*Volume, len(books)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)

	for _, book := range books {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vol, err := loadVolume(book, opts, logger)
			if err != nil || vol == nil {
				return err
			}
			mu.Lock()
			lib.volumes[book.ID] = vol
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("library ready", "books", len(lib.books), "transcripts", len(lib.volumes))
	return lib, nil
}

// loadVolume returns nil, nil when the book has no transcript on disk.
func loadVolume(book Book, opts Options, logger *slog.Logger) (*Volume, error) {
	path := filepath.Join(opts.TranscriptDir, book.TranscriptFileName())

	aliases := opts.Aliases
	if book.AliasFile != "" {
		aliasPath := book.AliasFile
		if !filepath.IsAbs(aliasPath) {
			aliasPath = filepath.Join(opts.TranscriptDir, aliasPath)
		}
		a, err := transcript.LoadAliases(aliasPath)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeConfiguration, "alias table for %s", book.ID)
		}
		aliases = a
	}

	var topts []transcript.Option
	if aliases != nil {
		topts = append(topts, transcript.WithAliases(aliases))
	}

	tr, err := transcript.Load(path, opts.WordsPerMinute, topts...)
	if err != nil {
		logger.Warn("transcript not available",
			"book_id", book.ID,
			"path", path,
			"error", err,
		)
		return nil, nil
	}

	chunks, err := transcript.NewChunkIndex(tr, opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	if opts.Index != nil {
		if err := opts.Index.IndexBook(book.ID, chunks.Chunks()); err != nil {
			return nil, errors.Wrapf(err, errors.CodeInternal, "index chunks for %s", book.ID)
		}
	}

	logger.Info("loaded transcript",
		"book_id", book.ID,
		"title", book.Title,
		"words", tr.TotalWords(),
		"chunks", chunks.Len(),
		"estimated_duration", tr.EstimatedDuration(),
	)

	return &Volume{
		Book:       book,
		Transcript: tr,
		Chunks:     chunks,
		Scene:      scene.New(tr, chunks, opts.Scene),
	}, nil
}

// LoadManifest reads audiobooks.json. An empty manifest is an error.
func LoadManifest(path string) ([]Book, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Manifest path is operator configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("manifest not found: %s", path)
		}
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "read manifest %s", path)
	}

	var books []Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, errors.Wrapf(err, errors.CodeConfiguration, "parse manifest %s", path)
	}
	if len(books) == 0 {
		return nil, errors.Configurationf("manifest %s lists no audiobooks", path)
	}
	for i := range books {
		if books[i].ID == "" {
			books[i].ID = UnknownBookID
		}
	}
	return books, nil
}

func placeholder() Book {
	return Book{ID: UnknownBookID, Title: "Unknown", Author: "Unknown"}
}

// New builds a library from already-loaded volumes. Books without a volume have no transcript.
func New(books []Book, volumes ...*Volume) *Library {
	if len(books) == 0 {
		books = []Book{placeholder()}
	}
	lib := &Library{
		books:   append([]Book(nil), books...),
		volumes: make(map[string]*Volume, len(volumes)),
	}
	for _, v := range volumes {
		lib.volumes[v.ID] = v
	}
	return lib
}

// Len returns the number of books. It is always at least one.
func (l *Library) Len() int { return len(l.books) }

// Books returns a copy of the manifest entries in order.
func (l *Library) Books() []Book {
	return append([]Book(nil), l.books...)
}

// Book returns the book at index i.
func (l *Library) Book(i int) (Book, bool) {
	if i < 0 || i >= len(l.books) {
		return Book{}, false
	}
	return l.books[i], true
}

// IndexOf returns the position of the book with the given ID, or -1.
func (l *Library) IndexOf(id string) int {
	for i, b := range l.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Volume returns the loaded transcript indexes for a book.
func (l *Library) Volume(id string) (*Volume, bool) {
	v, ok := l.volumes[id]
	return v, ok
}

// HasTranscript reports whether a book's transcript was loaded.
func (l *Library) HasTranscript(id string) bool {
	_, ok := l.volumes[id]
	return ok
}
