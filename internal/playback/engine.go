package playback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"musiclib/internal/metrics"
	"musiclib/internal/roon"
)

// Action modes tried by the fallback strategy, in order. Tier names
// double as metrics labels.
const (
	tierImplicit   = "implicit-play"
	tierExplicit   = "explicit-play"
	tierArtistOnly = "artist-only"
)

// explicitPlayAction forces "play now" semantics on libraries whose
// default browse action is something else (e.g. "Add to Queue")
const explicitPlayAction = "Play Now"

const defaultCallTimeout = 5 * time.Second

// PlayAttempt describes one (artist-variant, album-variant, action-mode)
// combination tried during a play operation. Logging/telemetry only.
type PlayAttempt struct {
	ArtistVariant string
	AlbumVariant  string
	Mode          string
}

// Engine locates and starts playback of an album or artist given
// approximate names, using name variants and a three-tier fallback:
// implicit play, explicit play action, then artist-only. Tiers and
// variants are tried strictly sequentially; concurrent play commands to
// one zone can corrupt the remote queue, so latency is traded for
// correctness here.
type Engine struct {
	bridge      roon.Bridge
	metrics     *metrics.Recorder
	logger      *zap.Logger
	callTimeout time.Duration
}

// NewEngine creates a playback strategy engine
func NewEngine(bridge roon.Bridge, rec *metrics.Recorder, logger *zap.Logger, callTimeout time.Duration) *Engine {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Engine{
		bridge:      bridge,
		metrics:     rec,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// PlayAlbum tries to start playback of the given album on the given
// zone. Returns true on the first successful attempt across all tiers;
// false once every strategy is exhausted. Remote failures never
// propagate to the caller.
func (e *Engine) PlayAlbum(ctx context.Context, zoneID, artist, album string) bool {
	log := e.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("zone_id", zoneID),
		zap.String("artist", artist),
		zap.String("album", album))

	artistVariants := Variants(KindArtist, artist)
	albumVariants := Variants(KindAlbum, album)

	log.Info("Starting album playback",
		zap.Int("artist_variants", len(artistVariants)),
		zap.Int("album_variants", len(albumVariants)))

	// Tier 1: cheapest and most often correct - the library's default action
	ok, abort := e.tryAlbumTier(ctx, log, tierImplicit, zoneID, artistVariants, albumVariants, "")
	if ok {
		e.metrics.PlayRequest(true)
		return true
	}

	// Tier 2: one extra round trip, but covers libraries whose default
	// action is not "play now"
	if !abort {
		ok, abort = e.tryAlbumTier(ctx, log, tierExplicit, zoneID, artistVariants, albumVariants, explicitPlayAction)
		if ok {
			e.metrics.PlayRequest(true)
			return true
		}
	}

	// Tier 3: wrong album beats silence - start the artist's top entry
	if !abort {
		if e.tryArtistTier(ctx, log, zoneID, artistVariants) {
			log.Warn("Album not found, fell back to artist-level playback")
			e.metrics.PlayRequest(true)
			return true
		}
	}

	log.Warn("All playback strategies exhausted")
	e.metrics.PlayRequest(false)
	return false
}

// PlayArtistOnly starts the artist's top-level library entry directly,
// for callers with no album context
func (e *Engine) PlayArtistOnly(ctx context.Context, zoneID, artist string) bool {
	log := e.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("zone_id", zoneID),
		zap.String("artist", artist))

	ok := e.tryArtistTier(ctx, log, zoneID, Variants(KindArtist, artist))
	e.metrics.PlayRequest(ok)
	if !ok {
		log.Warn("Artist playback exhausted all variants")
	}
	return ok
}

// tryAlbumTier walks the (artist x album) variant grid for one tier.
// abort is set when further attempts are pointless: the caller's
// context ended or the control channel is down (recovery belongs to the
// health monitor, not this loop).
func (e *Engine) tryAlbumTier(ctx context.Context, log *zap.Logger, tier, zoneID string, artistVariants, albumVariants []string, action string) (ok, abort bool) {
	for _, artistVariant := range artistVariants {
		for _, albumVariant := range albumVariants {
			attempt := PlayAttempt{
				ArtistVariant: artistVariant,
				AlbumVariant:  albumVariant,
				Mode:          tier,
			}

			path := []string{"Library", "Artists", artistVariant, albumVariant}
			if ok, abort = e.attemptPlay(ctx, log, attempt, path, zoneID, action); ok || abort {
				return ok, abort
			}
		}
	}
	return false, false
}

// tryArtistTier attempts artist-level playback for each artist variant
func (e *Engine) tryArtistTier(ctx context.Context, log *zap.Logger, zoneID string, artistVariants []string) bool {
	for _, artistVariant := range artistVariants {
		attempt := PlayAttempt{
			ArtistVariant: artistVariant,
			Mode:          tierArtistOnly,
		}

		path := []string{"Library", "Artists", artistVariant}
		ok, abort := e.attemptPlay(ctx, log, attempt, path, zoneID, "")
		if ok {
			return true
		}
		if abort {
			return false
		}
	}
	return false
}

// attemptPlay issues one bounded play command and classifies the result
func (e *Engine) attemptPlay(ctx context.Context, log *zap.Logger, attempt PlayAttempt, path []string, zoneID, action string) (ok, abort bool) {
	if ctx.Err() != nil {
		return false, true
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	err := e.bridge.PlayMedia(callCtx, path, zoneID, action)
	cancel()

	fields := []zap.Field{
		zap.String("mode", attempt.Mode),
		zap.String("artist_variant", attempt.ArtistVariant),
		zap.String("album_variant", attempt.AlbumVariant),
	}

	if err == nil {
		e.metrics.PlayAttempt(attempt.Mode, true)
		log.Info("Playback started", fields...)
		return true, false
	}

	e.metrics.PlayAttempt(attempt.Mode, false)

	switch {
	case errors.Is(err, roon.ErrConnectionLost):
		// Not retried here; the health monitor owns recovery
		log.Warn("Aborting playback attempts, bridge unreachable", append(fields, zap.Error(err))...)
		return false, true
	case errors.Is(err, roon.ErrTimeout):
		log.Debug("Play attempt timed out", append(fields, zap.Error(err))...)
	case errors.Is(err, roon.ErrNotFound):
		log.Debug("Play attempt did not resolve", append(fields, zap.Error(err))...)
	default:
		log.Debug("Play attempt failed", append(fields, zap.Error(err))...)
	}
	return false, false
}
