package metadata

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// Info holds tags and timing read from a local audio file
type Info struct {
	Title      string
	Artist     string
	Album      string
	Genre      string
	Year       int
	Duration   float64 // seconds, 0 when the container does not carry it
	HasArtwork bool
}

// ProbeFile reads tags and duration from an MP3 or FLAC file.
// Cached tracks are probed once on write so the cache index can answer
// display queries without touching the audio again.
func ProbeFile(filePath string) (*Info, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return probeMP3(filePath)
	case ".flac":
		return probeFLAC(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// probeMP3 reads ID3v2 tags from an MP3 file
func probeMP3(filePath string) (*Info, error) {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	info := &Info{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Genre:  tag.Genre(),
	}

	if year := tag.Year(); year != "" {
		// TDRC can carry a full timestamp; the year is the leading field
		if len(year) > 4 {
			year = year[:4]
		}
		if y, err := strconv.Atoi(year); err == nil {
			info.Year = y
		}
	}

	// TLEN carries the track length in milliseconds when the encoder wrote it
	if frame := tag.GetTextFrame("TLEN"); frame.Text != "" {
		if ms, err := strconv.ParseFloat(frame.Text, 64); err == nil && ms > 0 {
			info.Duration = ms / 1000.0
		}
	}

	if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) > 0 {
		info.HasArtwork = true
	}

	return info, nil
}

// probeFLAC reads the stream info block and Vorbis comments from a FLAC file
func probeFLAC(filePath string) (*Info, error) {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	info := &Info{}

	if si, err := f.GetStreamInfo(); err == nil && si.SampleRate > 0 {
		info.Duration = float64(si.SampleCount) / float64(si.SampleRate)
	}

	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			info.Title = firstComment(cmt, "TITLE")
			info.Artist = firstComment(cmt, "ARTIST")
			info.Album = firstComment(cmt, "ALBUM")
			info.Genre = firstComment(cmt, "GENRE")
			if date := firstComment(cmt, "DATE"); len(date) >= 4 {
				if y, err := strconv.Atoi(date[:4]); err == nil {
					info.Year = y
				}
			}
		case flac.Picture:
			info.HasArtwork = true
		}
	}

	return info, nil
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}
