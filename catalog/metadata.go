package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
)

// extractMetadata reads tags from an audio file with a filename
// fallback: the title defaults to the filename stem when the source
// metadata is absent or unreadable.
func extractMetadata(absPath string, info os.FileInfo) types.TrackMetadata {
	md := types.TrackMetadata{
		Title:      stem(absPath),
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
	}

	f, err := os.Open(absPath)
	if err != nil {
		logger.Warn("could not open audio file for metadata",
			zap.String("path", absPath), zap.Error(err))
		return md
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		logger.Debug("no parseable tags in audio file",
			zap.String("path", absPath), zap.Error(err))
		return md
	}

	if t := meta.Title(); t != "" {
		md.Title = t
	}
	md.Artist = meta.Artist()
	md.Album = meta.Album()
	return md
}

// stem returns the filename without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
