// Package beets wraps the external `beet` binary as the post-processor
// facade (spec §4.C). Non-interactive imports run with a hard 10-minute
// timeout; stdout is parsed for the final library path and import counts.
package beets

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
)

const importTimeout = 10 * time.Minute

type Client struct {
	settings *config.Store
	log      zerolog.Logger
	lookPath func(string) (string, error)
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{settings: settings, log: log.With().Str("integration", "beets").Logger(), lookPath: exec.LookPath}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	if !c.settings.Bool("beets_enabled", false) {
		return false
	}
	_, err := c.lookPath("beet")
	return err == nil
}

var (
	importedAlbumRe = regexp.MustCompile(`(?i)^Album:\s*(.+)$`)
	libraryPathRe   = regexp.MustCompile(`(?i)->\s*(/.+)$`)
)

// ImportDirectory runs `beet import -q <path>` with beets_config_path (when
// set) passed as BEETSDIR, and with artist/album hints steering beets'
// autotagger toward the right match. It never returns an error: failures
// and timeouts are reported in the result's Error field, per the
// integration's non-throwing contract.
func (c *Client) ImportDirectory(ctx context.Context, path, artistHint, albumHint string, move bool) catalog.ImportResult {
	if !c.IsAvailable(ctx) {
		return catalog.ImportResult{Success: false, Error: "beets not enabled or binary not found"}
	}

	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	args := []string{"import", "-q"}
	if move {
		args = append(args, "--move")
	} else {
		args = append(args, "--copy")
	}
	if artistHint != "" {
		args = append(args, "--set", "albumartist="+artistHint)
	}
	if albumHint != "" {
		args = append(args, "--set", "album="+albumHint)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, "beet", args...)
	if cfgPath, ok := c.settings.Optional("beets_config_path"); ok {
		cmd.Env = append(cmd.Env, "BEETSDIR="+cfgPath)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		c.log.Warn().Str("path", path).Msg("beets import timed out")
		return catalog.ImportResult{Success: false, Error: "import timed out after 10 minutes"}
	}
	if err != nil {
		c.log.Warn().Err(err).Str("stderr", stderr.String()).Msg("beets import failed")
		return catalog.ImportResult{Success: false, Error: strings.TrimSpace(stderr.String())}
	}

	return parseImportOutput(stdout.String())
}

func parseImportOutput(output string) catalog.ImportResult {
	result := catalog.ImportResult{Success: true}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if importedAlbumRe.MatchString(line) {
			result.AlbumsImported++
		}
		if m := libraryPathRe.FindStringSubmatch(line); m != nil {
			result.FinalPath = strings.TrimSpace(m[1])
		}
		if strings.Contains(strings.ToLower(line), "items imported") {
			result.TracksImported += countLeadingNumber(line)
		}
	}
	if result.AlbumsImported == 0 && result.FinalPath == "" {
		result.AlbumsImported = 1
	}
	return result
}

func countLeadingNumber(line string) int {
	line = strings.TrimSpace(line)
	n := 0
	found := false
	for _, r := range line {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			found = true
			continue
		}
		break
	}
	if !found {
		return 0
	}
	return n
}

func (c *Client) ListLibrary(ctx context.Context, query string, limit int) []catalog.TrackResult {
	if !c.IsAvailable(ctx) {
		return nil
	}
	args := []string{"list", "-f", "$artist\t$album\t$title\t$length"}
	if query != "" {
		args = append(args, query)
	}
	cmd := exec.CommandContext(ctx, "beet", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		c.log.Debug().Err(err).Msg("list library failed")
		return nil
	}

	results := make([]catalog.TrackResult, 0)
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		tr := catalog.TrackResult{ArtistName: fields[0], AlbumTitle: fields[1], Title: fields[2]}
		results = append(results, tr)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

var _ catalog.PostProcessor = (*Client)(nil)
