// Package audiocache is a content-addressed store for synthesized speech.
// Artifacts are keyed by a digest of (text, voice) and kept as .mp3 files;
// re-requesting the same utterance is served from disk instead of the
// provider.
package audiocache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Synthesizer is the slice of the provider gateway the cache needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// Stats describes the on-disk footprint of the cache.
type Stats struct {
	TotalFiles int   `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}

// Cache stores synthesized audio under deterministic ids.
type Cache struct {
	dir          string
	synth        Synthesizer
	defaultVoice string
	speed        float64
	log          *logrus.Logger
}

func New(dir string, synth Synthesizer, defaultVoice string, speed float64, log *logrus.Logger) (*Cache, error) {
	if dir == "" {
		dir = "temp_audio"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio cache dir: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Cache{
		dir:          dir,
		synth:        synth,
		defaultVoice: defaultVoice,
		speed:        speed,
		log:          log,
	}, nil
}

// Key derives the artifact id for a (text, voice) pair. It is a pure
// function: identical inputs always map to the identical id. The speech
// rate is intentionally not part of the key, matching the addressing scheme
// the service has always used.
func Key(text, voice string) string {
	sum := md5.Sum([]byte(text + ":" + voice))
	return hex.EncodeToString(sum[:])
}

// FetchOrSynthesize returns cached audio for the utterance when useCache is
// set and an artifact exists, otherwise synthesizes fresh audio, persisting
// it under its id when persist is set. Ephemeral callers (live voice turns)
// pass useCache=false, persist=false and never touch the disk.
func (c *Cache) FetchOrSynthesize(ctx context.Context, text, voice string, useCache, persist bool) (string, []byte, error) {
	if voice == "" {
		voice = c.defaultVoice
	}
	id := Key(text, voice)

	if useCache {
		if audio, err := os.ReadFile(c.path(id)); err == nil {
			c.log.WithFields(logrus.Fields{"audio_id": id, "bytes": len(audio)}).Debug("audio cache hit")
			return id, audio, nil
		}
	}

	audio, err := c.synth.Synthesize(ctx, text, voice, c.speed)
	if err != nil {
		return "", nil, err
	}

	if persist {
		if err := os.WriteFile(c.path(id), audio, 0o644); err != nil {
			return "", nil, fmt.Errorf("persist audio %s: %w", id, err)
		}
		c.log.WithFields(logrus.Fields{"audio_id": id, "chars": len(text), "bytes": len(audio)}).Info("synthesized audio cached")
	}
	return id, audio, nil
}

// Get returns the artifact bytes, or (nil, false) when absent.
func (c *Cache) Get(id string) ([]byte, bool) {
	if !validID(id) {
		return nil, false
	}
	audio, err := os.ReadFile(c.path(id))
	if err != nil {
		return nil, false
	}
	return audio, true
}

// Delete removes the artifact and reports whether anything was removed.
func (c *Cache) Delete(id string) bool {
	if !validID(id) {
		return false
	}
	if err := os.Remove(c.path(id)); err != nil {
		return false
	}
	return true
}

// Sweep removes artifacts older than maxAge and returns how many went away.
// Per-file failures are logged and skipped; a sweep pass never aborts.
func (c *Cache) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.WithError(err).Warn("audio cache sweep: read dir failed")
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			c.log.WithError(err).WithField("file", entry.Name()).Warn("audio cache sweep: remove failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		c.log.WithField("removed", removed).Info("audio cache sweep complete")
	}
	return removed
}

// StartJanitor runs Sweep on a fixed interval until ctx is cancelled.
func (c *Cache) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(maxAge)
			}
		}
	}()
}

// Stats snapshots the artifact count and cumulative size.
func (c *Cache) Stats() Stats {
	var st Stats
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return st
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		st.TotalFiles++
		st.TotalBytes += info.Size()
	}
	return st
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.dir, id+".mp3")
}

// validID rejects anything that is not a plain hex digest, which also keeps
// path traversal out of the artifact directory.
func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
