// Package media loads image files for MCP image content, recompressing
// large images so they fit comfortably in a tool response.
package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	// registered decoders for recompression
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"

	"mcp-shell-server/pkg/storage"
	"mcp-shell-server/pkg/toolerr"
)

const (
	DefaultMaxBytes = 1000000
	DefaultQuality  = 60
)

// Image is an image ready to be sent to a client.
type Image struct {
	Data     []byte
	MIMEType string
	// Compressed is set when Data was re-encoded as JPEG.
	Compressed   bool
	OriginalSize int
}

// Loader reads images through a storage.FS.
type Loader struct {
	store    *storage.FS
	maxBytes int
	quality  int
}

// NewLoader returns a loader that recompresses images above maxBytes as
// JPEG with the given quality. Non-positive values use the defaults.
func NewLoader(store *storage.FS, maxBytes, quality int) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Loader{store: store, maxBytes: maxBytes, quality: quality}
}

// Load reads the image at path.
func (l *Loader) Load(path string) (*Image, error) {
	info, err := l.store.Stat(path)
	if err != nil {
		if toolerr.CodeOf(err) == toolerr.CodeNotFound {
			return nil, toolerr.New(toolerr.CodeNotFound, "Path '%s' not found", path)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, toolerr.New(toolerr.CodeNotAFile, "Path '%s' is not a file", path)
	}

	data, err := l.store.ReadBytes(path)
	if err != nil {
		return nil, err
	}
	mimeType := detectImageType(path, data)
	if mimeType == "" {
		return nil, toolerr.New(toolerr.CodeUnsupported, "File '%s' is not a recognized image format", path)
	}

	img := &Image{Data: data, MIMEType: mimeType, OriginalSize: len(data)}
	if len(data) <= l.maxBytes {
		return img, nil
	}

	compressed, err := l.recompress(data)
	if err != nil {
		slog.Warn("Could not recompress image, sending original", "path", path, "size", len(data), "error", err)
		return img, nil
	}
	img.Data = compressed
	img.MIMEType = "image/jpeg"
	img.Compressed = true
	slog.Debug("Recompressed image", "path", path, "from", len(data), "to", len(compressed))
	return img, nil
}

func (l *Loader) recompress(data []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: l.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectImageType guesses from the extension first and sniffs the content
// when the extension is unknown. It returns "" for anything but images.
func detectImageType(path string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil && strings.HasPrefix(mediaType, "image/") {
			return mediaType
		}
		return ""
	}
	if sniffed := mimetype.Detect(data); strings.HasPrefix(sniffed.String(), "image/") {
		return sniffed.String()
	}
	return ""
}
