package decoder

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Tags holds the descriptive metadata embedded in an audio file.
type Tags struct {
	Title  string
	Artist string
}

// ReadTags reads ID3/Vorbis/FLAC tags from path. A file without tags is not
// an error: the title falls back to the file name without its extension.
func ReadTags(path string) (Tags, error) {
	fallback := Tags{Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	f, err := os.Open(path)
	if err != nil {
		return fallback, newError("tags", path, ErrIO, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fallback, nil
	}

	t := Tags{Title: strings.TrimSpace(m.Title()), Artist: strings.TrimSpace(m.Artist())}
	if t.Title == "" {
		t.Title = fallback.Title
	}
	return t, nil
}
