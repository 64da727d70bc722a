package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
)

// database is the on-disk document: two top-level maps, file records
// keyed by relative path and tag mappings keyed by tag id.
type database struct {
	Files    map[string]*types.TrackRecord `json:"files"`
	Mappings map[string]string             `json:"mappings"`
}

// ValidationReport is the result of a read-only catalog audit.
type ValidationReport struct {
	MissingFiles     []string `json:"missingFiles"`
	DuplicateTargets []string `json:"duplicateTargets"`
}

// Store owns the catalog of known audio files and tag mappings and is
// the only component that mutates the on-disk database. A single lock
// guards both maps, the dirty flag and the deferred-flush timer.
type Store struct {
	musicRoot string
	dbPath    string
	flushWait time.Duration

	mu         sync.RWMutex
	files      map[string]*types.TrackRecord
	mappings   map[string]string
	dirty      bool
	flushTimer *time.Timer
	closed     bool
}

// NewStore creates the store, ensures the music root and database
// directory exist, and loads the database. A missing database file is
// an empty database; a corrupt one is replaced with an empty database
// rather than failing startup.
func NewStore(musicRoot, dbPath string, flushWait time.Duration) (*Store, error) {
	root, err := filepath.Abs(musicRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving music root: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating music root: %w", err)
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	s := &Store{
		musicRoot: root,
		dbPath:    dbPath,
		flushWait: flushWait,
		files:     make(map[string]*types.TrackRecord),
		mappings:  make(map[string]string),
	}
	s.load()
	return s, nil
}

// MusicRoot returns the absolute music root directory.
func (s *Store) MusicRoot() string {
	return s.musicRoot
}

// load reads the database file into memory. Never fails: a missing
// file starts empty, a corrupt file is logged, discarded and
// immediately overwritten with an empty database.
func (s *Store) load() {
	data, err := os.ReadFile(s.dbPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("could not read catalog database, starting empty",
				zap.String("path", s.dbPath), zap.Error(err))
		}
		return
	}

	var db database
	if err := json.Unmarshal(data, &db); err != nil {
		logger.Error("catalog database is corrupt, starting empty",
			zap.String("path", s.dbPath), zap.Error(err))
		s.mu.Lock()
		if err := s.saveLocked(); err != nil {
			logger.Error("could not overwrite corrupt database", zap.Error(err))
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if db.Files != nil {
		s.files = db.Files
	}
	if db.Mappings != nil {
		s.mappings = db.Mappings
	}
	s.mu.Unlock()
	logger.Info("catalog loaded",
		zap.Int("tracks", len(db.Files)), zap.Int("mappings", len(db.Mappings)))
}

// saveLocked serializes the database to a temporary file in the same
// directory, fsyncs, then renames over the live file. Caller holds the
// write lock. The dirty flag is cleared only on success so a failed
// write is retried on the next dirty mark.
func (s *Store) saveLocked() error {
	db := database{Files: s.files, Mappings: s.mappings}
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding database: %v", ErrStorage, err)
	}

	dir := filepath.Dir(s.dbPath)
	tmp, err := os.CreateTemp(dir, ".musicbox-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing database: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.dbPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing database: %v", ErrStorage, err)
	}

	s.dirty = false
	return nil
}

// markDirtyLocked flags unsaved changes and arranges a deferred flush
// if one is not already pending. Caller holds the write lock.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.flushTimer == nil && !s.closed {
		s.flushTimer = time.AfterFunc(s.flushWait, s.deferredFlush)
	}
}

// deferredFlush runs from the flush timer. A flush of a clean store is
// a no-op.
func (s *Store) deferredFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushTimer = nil
	if !s.dirty || s.closed {
		return
	}
	if err := s.saveLocked(); err != nil {
		logger.Error("deferred catalog flush failed", zap.Error(err))
	}
}

// ScanDirectory walks the music root and reconciles the catalog: new
// audio files gain records, vanished files lose theirs, and mappings
// whose target disappeared are purged. Idempotent.
func (s *Store) ScanDirectory() error {
	return s.ScanWithProgress(nil)
}

// ScanWithProgress is ScanDirectory with a per-file callback, used by
// the CLI to drive a progress bar.
func (s *Store) ScanWithProgress(progress func(rel string)) error {
	// Metadata extraction is slow, so the walk happens outside the
	// lock against a snapshot of the current records.
	s.mu.RLock()
	prior := make(map[string]*types.TrackRecord, len(s.files))
	for rel, rec := range s.files {
		prior[rel] = rec
	}
	s.mu.RUnlock()

	scanned := make(map[string]*types.TrackRecord)
	err := filepath.WalkDir(s.musicRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.musicRoot {
				return err
			}
			logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.musicRoot && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !IsAudioFile(path) {
			return nil
		}

		rel, err := filepath.Rel(s.musicRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			logger.Warn("could not stat audio file", zap.String("path", path), zap.Error(err))
			return nil
		}

		if old, ok := prior[rel]; ok &&
			old.Metadata.SizeBytes == info.Size() &&
			old.Metadata.ModifiedAt.Equal(info.ModTime()) {
			// Unchanged since last scan, keep the existing record.
			scanned[rel] = &types.TrackRecord{
				Metadata:       old.Metadata,
				LastPositionMs: old.LastPositionMs,
			}
		} else {
			rec := &types.TrackRecord{Metadata: extractMetadata(path, info)}
			if old, ok := prior[rel]; ok {
				rec.LastPositionMs = old.LastPositionMs
			}
			scanned[rel] = rec
		}
		if progress != nil {
			progress(rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: scanning %s: %v", ErrStorage, s.musicRoot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Positions checkpointed while the walk ran win over the snapshot.
	for rel, rec := range scanned {
		if cur, ok := s.files[rel]; ok && cur.LastPositionMs != rec.LastPositionMs {
			rec.LastPositionMs = cur.LastPositionMs
		}
	}
	s.files = scanned

	purged := 0
	for tagID, rel := range s.mappings {
		if _, ok := s.files[rel]; !ok {
			delete(s.mappings, tagID)
			purged++
			logger.Info("purged mapping for vanished track",
				zap.String("tag", tagID), zap.String("path", rel))
		}
	}

	if err := s.saveLocked(); err != nil {
		logger.Error("could not persist catalog after scan", zap.Error(err))
		s.markDirtyLocked()
	}
	logger.Info("catalog scan complete",
		zap.Int("tracks", len(s.files)), zap.Int("purgedMappings", purged))
	return nil
}

// AddMapping maps a tag id to a track. The input may be a bare
// filename, a relative path, or an absolute path under the music root.
// If the resolved path is not in the catalog a single rescan is
// attempted before the mapping is rejected. Replaces any prior mapping
// for the tag and persists immediately.
func (s *Store) AddMapping(tagID, pathOrName string) error {
	if err := ValidateTagID(tagID); err != nil {
		return err
	}
	if !strings.ContainsAny(pathOrName, `/\`) {
		if err := ValidateFilename(pathOrName); err != nil {
			return err
		}
	}
	rel, err := normalizeRelative(s.musicRoot, pathOrName)
	if err != nil {
		return err
	}

	if !s.hasFile(rel) {
		if err := s.ScanDirectory(); err != nil {
			return err
		}
		if !s.hasFile(rel) {
			return fmt.Errorf("%w: %s", ErrUnknownTrack, rel)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.mappings[tagID]; ok && old != rel {
		logger.Info("replacing mapping",
			zap.String("tag", tagID), zap.String("old", old), zap.String("new", rel))
	}
	s.mappings[tagID] = rel
	if err := s.saveLocked(); err != nil {
		s.markDirtyLocked()
		return err
	}
	logger.Info("mapping added", zap.String("tag", tagID), zap.String("path", rel))
	return nil
}

// RemoveMapping deletes the mapping for a tag if present and persists.
// Removing an unknown tag is a no-op.
func (s *Store) RemoveMapping(tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mappings[tagID]; !ok {
		return nil
	}
	delete(s.mappings, tagID)
	if err := s.saveLocked(); err != nil {
		s.markDirtyLocked()
		return err
	}
	logger.Info("mapping removed", zap.String("tag", tagID))
	return nil
}

// ResolveMapping returns the absolute path for a mapped tag. Returns
// false if the tag is unmapped or the mapped file no longer exists on
// disk; a stale mapping is only purged by the next scan, not here.
func (s *Store) ResolveMapping(tagID string) (string, bool) {
	s.mu.RLock()
	rel, ok := s.mappings[tagID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	abs := filepath.Join(s.musicRoot, filepath.FromSlash(rel))
	if _, err := os.Stat(abs); err != nil {
		logger.Warn("mapped file not found on disk",
			zap.String("tag", tagID), zap.String("path", rel))
		return "", false
	}
	return abs, true
}

// ResolvePath resolves external path input to an absolute path under
// the music root without requiring catalog membership.
func (s *Store) ResolvePath(input string) (string, error) {
	if !strings.ContainsAny(input, `/\`) {
		if err := ValidateFilename(input); err != nil {
			return "", err
		}
	}
	rel, err := normalizeRelative(s.musicRoot, input)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.musicRoot, filepath.FromSlash(rel)), nil
}

// CheckpointPosition records the last playback offset for a track. The
// write is debounced: the store is marked dirty and a deferred flush is
// scheduled rather than hitting the disk on every playback tick.
// Tolerates paths not present in the catalog.
func (s *Store) CheckpointPosition(absPath string, positionMs int64) {
	rel, err := filepath.Rel(s.musicRoot, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		logger.Warn("checkpoint for path outside music root", zap.String("path", absPath))
		return
	}
	rel = filepath.ToSlash(rel)
	if positionMs < 0 {
		positionMs = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[rel]
	if !ok {
		logger.Debug("checkpoint for unknown track ignored", zap.String("path", rel))
		return
	}
	if rec.LastPositionMs == positionMs {
		return
	}
	rec.LastPositionMs = positionMs
	s.markDirtyLocked()
}

// LastPosition returns the stored playback offset for a track, or 0.
func (s *Store) LastPosition(absPath string) int64 {
	rel, err := filepath.Rel(s.musicRoot, absPath)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.files[filepath.ToSlash(rel)]; ok {
		return rec.LastPositionMs
	}
	return 0
}

// MetadataFor returns the catalog metadata for a track by absolute path.
func (s *Store) MetadataFor(absPath string) (types.TrackMetadata, bool) {
	rel, err := filepath.Rel(s.musicRoot, absPath)
	if err != nil {
		return types.TrackMetadata{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.files[filepath.ToSlash(rel)]; ok {
		return rec.Metadata, true
	}
	return types.TrackMetadata{}, false
}

// Tracks returns the catalog listing with mapped tags, sorted by
// filename.
func (s *Store) Tracks() []types.TrackInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappedBy := make(map[string]string, len(s.mappings))
	for tagID, rel := range s.mappings {
		if _, ok := mappedBy[rel]; !ok {
			mappedBy[rel] = tagID
		}
	}

	tracks := make([]types.TrackInfo, 0, len(s.files))
	for rel, rec := range s.files {
		tracks = append(tracks, types.TrackInfo{
			Filename: filepath.Base(rel),
			Path:     rel,
			Metadata: rec.Metadata,
			MappedTo: mappedBy[rel],
		})
	}
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Filename == tracks[j].Filename {
			return tracks[i].Path < tracks[j].Path
		}
		return tracks[i].Filename < tracks[j].Filename
	})
	return tracks
}

// UnmappedFiles returns the relative paths of tracks with no tag
// mapping, sorted.
func (s *Store) UnmappedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapped := make(map[string]bool, len(s.mappings))
	for _, rel := range s.mappings {
		mapped[rel] = true
	}
	var unmapped []string
	for rel := range s.files {
		if !mapped[rel] {
			unmapped = append(unmapped, rel)
		}
	}
	sort.Strings(unmapped)
	return unmapped
}

// Validate audits the catalog without mutating it: mappings whose
// target is missing from disk, and tracks targeted by more than one
// tag. Duplicate targets are a warning, not an error.
func (s *Store) Validate() ValidationReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var report ValidationReport
	for tagID, rel := range s.mappings {
		abs := filepath.Join(s.musicRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			report.MissingFiles = append(report.MissingFiles, fmt.Sprintf("%s: %s", tagID, rel))
		}
	}

	counts := make(map[string]int)
	for _, rel := range s.mappings {
		counts[rel]++
	}
	for rel, n := range counts {
		if n > 1 {
			report.DuplicateTargets = append(report.DuplicateTargets, rel)
		}
	}
	sort.Strings(report.MissingFiles)
	sort.Strings(report.DuplicateTargets)

	if len(report.MissingFiles) > 0 || len(report.DuplicateTargets) > 0 {
		logger.Warn("catalog validation found issues",
			zap.Int("missingFiles", len(report.MissingFiles)),
			zap.Int("duplicateTargets", len(report.DuplicateTargets)))
	}
	return report
}

// Flush forces an immediate synchronous save and cancels any pending
// deferred flush. Flushing a clean store is a no-op.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// Close flushes and marks the store closed. Must be called before
// process exit.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	var err error
	if s.dirty {
		err = s.saveLocked()
	}
	s.closed = true
	s.mu.Unlock()
	return err
}

// hasFile reports whether a relative path is in the catalog.
func (s *Store) hasFile(rel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[rel]
	return ok
}
