package di

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-companion/internal/config"
	"github.com/listenupapp/listenup-companion/internal/di/providers"
	"github.com/listenupapp/listenup-companion/internal/library"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	manifest := `[{"id":"snow-white-001","title":"Snow White","author":"Brothers Grimm","duration":600}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audiobooks.json"), []byte(manifest), 0o600))
	text := strings.Repeat("Snow White met the dwarfs in the forest. ", 40)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snow_white_trans.txt"), []byte(text), 0o600))

	return &config.Config{
		App:    config.AppConfig{Environment: "development"},
		Logger: config.LoggerConfig{Level: "error"},
		Server: config.ServerConfig{
			Port:         "0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Library: config.LibraryConfig{
			ManifestPath:  filepath.Join(dir, "audiobooks.json"),
			TranscriptDir: dir,
		},
		Transcript: config.TranscriptConfig{
			WordsPerMinute: 120,
			ContextWindow:  180 * time.Second,
			ChunkSize:      150,
			ChunkOverlap:   25,
		},
		Coordinator: config.CoordinatorConfig{
			IdleTimeout: 3 * time.Second,
			ResumeGrace: 3 * time.Second,
		},
		Scorer: config.ScorerConfig{Timeout: time.Second},
	}
}

func newInjector(t *testing.T, cfg *config.Config) *do.RootScope {
	t.Helper()
	injector := do.New()
	do.ProvideValue(injector, cfg)
	Register(injector)
	t.Cleanup(func() { _ = injector.Shutdown() })
	return injector
}

func TestBootstrap_ServesAPI(t *testing.T) {
	injector := newInjector(t, testConfig(t))
	require.NoError(t, Bootstrap(injector))

	lib := do.MustInvoke[*library.Library](injector)
	assert.Equal(t, 1, lib.Len())
	assert.True(t, lib.HasTranscript("snow-white-001"))

	// no API key: scene navigation is disabled, not fatal
	scorer := do.MustInvoke[*providers.ScorerHandle](injector)
	assert.Nil(t, scorer.Scorer)

	index := do.MustInvoke[*providers.SearchIndexHandle](injector)
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Positive(t, count)

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)
	resp, err := http.Get("http://" + srv.ListenAddr() + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestBootstrap_MissingTranscriptDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.TranscriptDir = filepath.Join(t.TempDir(), "missing")

	injector := newInjector(t, cfg)
	err := Bootstrap(injector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcript directory does not exist")
}

func TestBootstrap_BadAliasTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.AliasPath = filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(cfg.Library.AliasPath, []byte("characters: {}\n"), 0o600))

	injector := newInjector(t, cfg)
	err := Bootstrap(injector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defines no characters")
}
