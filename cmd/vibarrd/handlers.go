package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/pipeline"
	"github.com/vibarr/core/internal/rules"
	"github.com/vibarr/core/internal/store"
)

// registerActionHandlers wires every non-skip_item ActionKind (spec §4.G)
// onto e, closing over the daemon's pipeline and store so the rules
// package itself never imports either.
func registerActionHandlers(e *rules.Engine, p *pipeline.Pipeline, s *store.Store, events pipeline.EventPublisher, log zerolog.Logger) {
	h := &actionHandlers{pipeline: p, store: s, events: events, log: log.With().Str("component", "rule-actions").Logger()}

	e.Register(rules.ActionAddToWishlist, h.addToWishlist)
	e.Register(rules.ActionStartDownload, h.startDownload)
	e.Register(rules.ActionAddToPlaylist, h.addToPlaylist)
	e.Register(rules.ActionSendNotification, h.sendNotification)
	e.Register(rules.ActionTagItem, h.tagItem)
	e.Register(rules.ActionSetQualityProfile, h.setQualityProfile)
	e.Register(rules.ActionAddToLibrary, h.addToLibrary)
	e.Register(rules.ActionImportPlaylistURL, h.importPlaylistURL)
}

type actionHandlers struct {
	pipeline *pipeline.Pipeline
	store    *store.Store
	events   pipeline.EventPublisher
	log      zerolog.Logger
}

// coerceUint accepts the shapes a rule condition's context value can take:
// a plain uint from Go-originated firings (e.g. the pipeline's own
// triggers) or a float64 from a JSON-decoded ruleCtx.
func coerceUint(v interface{}) (uint, bool) {
	switch t := v.(type) {
	case uint:
		return t, true
	case int:
		return uint(t), true
	case float64:
		return uint(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	default:
		return 0, false
	}
}

func coerceString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func wishlistItemType(ruleCtx rules.Context) store.WishlistItemType {
	switch {
	case coerceString(ruleCtx["track_title"]) != "":
		return store.WishlistItemTrack
	case coerceString(ruleCtx["album_title"]) != "":
		return store.WishlistItemAlbum
	default:
		return store.WishlistItemArtist
	}
}

func (h *actionHandlers) addToWishlist(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	item := &store.WishlistItem{
		Type:            wishlistItemType(ruleCtx),
		ArtistName:      coerceString(ruleCtx["artist_name"]),
		AlbumTitle:      coerceString(ruleCtx["album_title"]),
		Status:          store.WishlistWanted,
		Source:          store.SourceAutomation,
		Priority:        store.PriorityNormal,
		PreferredFormat: action.Format,
		Notes:           action.Note,
	}
	if action.Priority != "" {
		item.Priority = store.Priority(action.Priority)
	}
	if action.AutoDownload != nil {
		item.AutoDownload = *action.AutoDownload
	}
	return h.store.CreateWishlistItem(ctx, item)
}

// addToLibrary behaves like addToWishlist but always sets AutoDownload and
// immediately runs Search rather than waiting for the next
// process-wishlist tick, for triggers (new_release on a library artist)
// where the user has already signaled they want everything that artist
// releases.
func (h *actionHandlers) addToLibrary(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	item := &store.WishlistItem{
		Type:            wishlistItemType(ruleCtx),
		ArtistName:      coerceString(ruleCtx["artist_name"]),
		AlbumTitle:      coerceString(ruleCtx["album_title"]),
		Status:          store.WishlistWanted,
		Source:          store.SourceAutomation,
		Priority:        store.PriorityHigh,
		AutoDownload:    true,
		PreferredFormat: action.Format,
		Notes:           action.Note,
	}
	if err := h.store.CreateWishlistItem(ctx, item); err != nil {
		return err
	}
	return h.pipeline.Search(ctx, item.ID, true)
}

func (h *actionHandlers) startDownload(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	id, ok := coerceUint(ruleCtx["wishlist_item_id"])
	if !ok {
		return fmt.Errorf("start_download action requires a wishlist_item_id in context")
	}
	return h.pipeline.Search(ctx, id, true)
}

// addToPlaylist has no media-server write path to act on: the MediaServer
// facade (spec §4.C) only reads Plex, it never mutates a playlist. This
// records the intent as a notification instead of silently dropping it.
func (h *actionHandlers) addToPlaylist(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	h.log.Info().Str("playlist_id", action.PlaylistID).Msg("add_to_playlist has no Plex write API; recording as notification only")
	return h.publish(ctx, "notification", fmt.Sprintf("would add to playlist %s (no Plex write API configured)", action.PlaylistID))
}

func (h *actionHandlers) sendNotification(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	msg := action.Message
	if msg == "" {
		msg = action.Note
	}
	return h.publish(ctx, "notification", msg)
}

func (h *actionHandlers) tagItem(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	id, ok := coerceUint(ruleCtx["wishlist_item_id"])
	if !ok || len(action.Tags) == 0 {
		return nil
	}
	item, err := h.store.GetWishlistItem(ctx, id)
	if err != nil {
		return err
	}
	notes := item.Notes
	for _, tag := range action.Tags {
		notes = appendTag(notes, tag)
	}
	return h.store.UpdateWishlistItemFields(ctx, id, map[string]interface{}{"notes": notes})
}

func appendTag(notes, tag string) string {
	if notes == "" {
		return "#" + tag
	}
	return notes + " #" + tag
}

func (h *actionHandlers) setQualityProfile(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	id, ok := coerceUint(ruleCtx["wishlist_item_id"])
	if !ok || action.ProfileName == "" {
		return nil
	}
	profile, err := h.store.FindQualityProfileByName(ctx, action.ProfileName)
	if err != nil {
		return err
	}
	format := ""
	if len(profile.PreferredFormats) > 0 {
		format = profile.PreferredFormats[0]
	}
	return h.store.UpdateWishlistItemFields(ctx, id, map[string]interface{}{"preferred_format": format})
}

func (h *actionHandlers) importPlaylistURL(ctx context.Context, action rules.Action, ruleCtx rules.Context) error {
	if action.URL == "" {
		return fmt.Errorf("import_playlist_url action requires a url")
	}
	return h.store.CreateWishlistItem(ctx, &store.WishlistItem{
		Type:   store.WishlistItemPlaylist,
		Notes:  action.URL,
		Status: store.WishlistWanted,
		Source: store.SourceAutomation,
	})
}

type notificationEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const notificationsChannel = "notifications"

func (h *actionHandlers) publish(ctx context.Context, kind, message string) error {
	payload, err := json.Marshal(notificationEvent{Type: kind, Message: message, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	return h.events.Publish(ctx, notificationsChannel, payload)
}
