package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
)

// writeTaggedMP3 creates a file carrying only an ID3v2 tag. The probe
// reads tags, not audio frames, so no MPEG data is needed.
func writeTaggedMP3(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "track.mp3")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("create file: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open tag: %v", err)
	}
	tag.SetVersion(4)
	tag.SetTitle("Silver Mirror")
	tag.SetArtist("The Hollow")
	tag.SetAlbum("Night Maps")
	tag.SetGenre("Electronic")
	tag.SetYear("2023")
	tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, "185000")
	if err := tag.Save(); err != nil {
		t.Fatalf("save tag: %v", err)
	}
	tag.Close()
	return path
}

func TestProbeFile_MP3Tags(t *testing.T) {
	path := writeTaggedMP3(t, t.TempDir())

	info, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if info.Title != "Silver Mirror" || info.Artist != "The Hollow" || info.Album != "Night Maps" {
		t.Errorf("tags mismatch: %+v", info)
	}
	if info.Year != 2023 {
		t.Errorf("year = %d, want 2023", info.Year)
	}
	if info.Duration != 185.0 {
		t.Errorf("duration = %v, want 185 (from TLEN)", info.Duration)
	}
	if info.HasArtwork {
		t.Error("no artwork was written")
	}
}

func TestProbeFile_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.ogg")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ProbeFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestProbeFile_MissingFile(t *testing.T) {
	if _, err := ProbeFile(filepath.Join(t.TempDir(), "absent.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}
