package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

type fakeIndexer struct {
	available bool
	results   []catalog.ReleaseRecord
	grabResult catalog.GrabResult
}

func (f *fakeIndexer) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeIndexer) Search(ctx context.Context, query string, categories []int) []catalog.ReleaseRecord {
	return f.results
}
func (f *fakeIndexer) SearchAlbum(ctx context.Context, artist, album, preferredFormat string) []catalog.ReleaseRecord {
	return f.results
}
func (f *fakeIndexer) Grab(ctx context.Context, guid string, indexerID int) catalog.GrabResult {
	return f.grabResult
}

type fakeTorrent struct {
	available   bool
	addURLOK    bool
	findHash    string
	findHashOK  bool
	torrents    map[string]catalog.TorrentInfo
}

func (f *fakeTorrent) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeTorrent) AddTorrentURL(ctx context.Context, url, category, savePath string, tags []string) bool {
	return f.addURLOK
}
func (f *fakeTorrent) GetTorrents(ctx context.Context, category, filter string) []catalog.TorrentInfo {
	out := make([]catalog.TorrentInfo, 0, len(f.torrents))
	for _, t := range f.torrents {
		out = append(out, t)
	}
	return out
}
func (f *fakeTorrent) GetTorrent(ctx context.Context, hash string) (catalog.TorrentInfo, bool) {
	t, ok := f.torrents[hash]
	return t, ok
}
func (f *fakeTorrent) Pause(ctx context.Context, hash string) bool                     { return true }
func (f *fakeTorrent) Resume(ctx context.Context, hash string) bool                    { return true }
func (f *fakeTorrent) Delete(ctx context.Context, hash string, deleteFiles bool) bool  { return true }
func (f *fakeTorrent) FindTorrentHash(ctx context.Context, expectedTitle string, timeoutSeconds int) (string, bool) {
	return f.findHash, f.findHashOK
}
func (f *fakeTorrent) EnsureCategory(ctx context.Context, category string) bool { return true }

type fakeEvents struct {
	published [][]byte
}

func (f *fakeEvents) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}

func newTestPipeline(t *testing.T, indexer catalog.IndexerAggregator, torrent catalog.TorrentClient) (*Pipeline, *store.Store, *config.Store, *fakeEvents) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file::memory:?cache=shared", zerolog.Nop())
	require.NoError(t, err)
	cfg, err := config.New(s.DB, zerolog.Nop())
	require.NoError(t, err)
	events := &fakeEvents{}
	p := New(s, cfg, indexer, torrent, nil, nil, events, zerolog.Nop())
	return p, s, cfg, events
}

func TestSearchRevertsToWantedWhenNoRelevantResults(t *testing.T) {
	indexer := &fakeIndexer{available: true, results: nil}
	p, s, _, _ := newTestPipeline(t, indexer, &fakeTorrent{})
	ctx := context.Background()

	item := &store.WishlistItem{ArtistName: "Boards of Canada", AlbumTitle: "Music Has the Right to Children", Status: store.WishlistWanted}
	require.NoError(t, s.CreateWishlistItem(ctx, item))

	require.NoError(t, p.Search(ctx, item.ID, false))

	got, err := s.GetWishlistItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.WishlistWanted, got.Status)
}

func TestSearchUserInitiatedAlwaysGrabsTopHit(t *testing.T) {
	indexer := &fakeIndexer{
		available: true,
		results: []catalog.ReleaseRecord{
			{GUID: "guid-1", Title: "Boards of Canada - Music Has the Right to Children", Protocol: "torrent", Score: 90, PassesTextRelevance: true, DownloadURL: "magnet:?xt=1"},
		},
		grabResult: catalog.GrabResult{Success: true, DownloadID: "abc123"},
	}
	torrent := &fakeTorrent{available: true}
	p, s, cfg, events := newTestPipeline(t, indexer, torrent)
	ctx := context.Background()
	_ = cfg

	item := &store.WishlistItem{ArtistName: "Boards of Canada", AlbumTitle: "Music Has the Right to Children", Status: store.WishlistWanted}
	require.NoError(t, s.CreateWishlistItem(ctx, item))

	require.NoError(t, p.Search(ctx, item.ID, true))

	got, err := s.GetWishlistItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.WishlistDownloading, got.Status)
	assert.NotEmpty(t, events.published)
}

func TestSearchScheduledRespectsAutoGrabGate(t *testing.T) {
	indexer := &fakeIndexer{
		available: true,
		results: []catalog.ReleaseRecord{
			{GUID: "guid-1", Title: "Release", Protocol: "torrent", Score: 90, PassesTextRelevance: true, DownloadURL: "magnet:?xt=1"},
		},
	}
	p, s, cfg, _ := newTestPipeline(t, indexer, &fakeTorrent{available: true})
	ctx := context.Background()
	require.NoError(t, cfg.Set("auto_download_enabled", "false", "automation"))

	item := &store.WishlistItem{ArtistName: "A", AlbumTitle: "B", Status: store.WishlistWanted}
	require.NoError(t, s.CreateWishlistItem(ctx, item))

	require.NoError(t, p.Search(ctx, item.ID, false))

	got, err := s.GetWishlistItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, store.WishlistFound, got.Status, "auto_download_enabled=false must not grab")
}

func TestGrabTorrentFallsBackToAddURLWhenProwlarrGrabFails(t *testing.T) {
	indexer := &fakeIndexer{available: true, grabResult: catalog.GrabResult{Success: false}}
	torrent := &fakeTorrent{available: true, addURLOK: true, findHash: "deadbeef", findHashOK: true}
	p, s, _, _ := newTestPipeline(t, indexer, torrent)
	ctx := context.Background()

	d := &store.Download{Protocol: "torrent", ReleaseTitle: "Release", Status: store.DownloadFound}
	require.NoError(t, s.CreateDownload(ctx, d))

	require.NoError(t, p.Grab(ctx, d.ID, "magnet:?xt=1", "Release"))

	got, err := s.GetDownload(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DownloadDownloading, got.Status)
	assert.Equal(t, "deadbeef", got.DownloadID)
	assert.Equal(t, "qbittorrent", got.DownloadClient)
}

func TestGrabTorrentFailsCleanlyWhenNoClientAvailable(t *testing.T) {
	indexer := &fakeIndexer{available: false}
	torrent := &fakeTorrent{available: false}
	p, s, _, _ := newTestPipeline(t, indexer, torrent)
	ctx := context.Background()

	d := &store.Download{Protocol: "torrent", ReleaseTitle: "Release", Status: store.DownloadFound}
	require.NoError(t, s.CreateDownload(ctx, d))

	require.NoError(t, p.Grab(ctx, d.ID, "magnet:?xt=1", "Release"))

	got, err := s.GetDownload(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DownloadFailed, got.Status)
}
