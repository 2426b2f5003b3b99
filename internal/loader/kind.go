package loader

import (
	"fmt"
	"path"
	"strings"

	"GopherScene/internal/resource"

	"github.com/h2non/filetype"
)

// Kind identifies a file format a decoder is registered for.
type Kind string

const (
	KindOBJ     Kind = "obj"
	KindGLTF    Kind = "gltf"
	KindGLB     Kind = "glb"
	KindTerrain Kind = "terrain"
	KindPNG     Kind = "png"
	KindJPEG    Kind = "jpeg"
	KindGIF     Kind = "gif"
	KindBMP     Kind = "bmp"
	KindTIFF    Kind = "tiff"
	KindWebP    Kind = "webp"
)

// ProceduralScheme prefixes URLs that are generated rather than fetched.
const ProceduralScheme = "proc://"

var extensionKinds = map[string]Kind{
	".obj":  KindOBJ,
	".gltf": KindGLTF,
	".glb":  KindGLB,
	".png":  KindPNG,
	".jpg":  KindJPEG,
	".jpeg": KindJPEG,
	".gif":  KindGIF,
	".bmp":  KindBMP,
	".tif":  KindTIFF,
	".tiff": KindTIFF,
	".webp": KindWebP,
}

// filetype reports its own extension names; map the ones we decode.
var sniffedKinds = map[string]Kind{
	"png":  KindPNG,
	"jpg":  KindJPEG,
	"gif":  KindGIF,
	"bmp":  KindBMP,
	"tif":  KindTIFF,
	"webp": KindWebP,
}

// IsProcedural reports whether url names generated content.
func IsProcedural(url string) bool {
	return strings.HasPrefix(url, ProceduralScheme)
}

// DetectKind picks the kind from the URL extension and falls back to sniffing
// header, the first bytes of the file, when the extension is missing or unknown.
func DetectKind(url string, header []byte) (Kind, error) {
	if IsProcedural(url) {
		name := strings.TrimPrefix(url, ProceduralScheme)
		if i := strings.IndexAny(name, "?/"); i >= 0 {
			name = name[:i]
		}
		return Kind(name), nil
	}

	clean := url
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if k, ok := extensionKinds[strings.ToLower(path.Ext(clean))]; ok {
		return k, nil
	}

	if len(header) > 0 {
		if t, err := filetype.Match(header); err == nil && t != filetype.Unknown {
			if k, ok := sniffedKinds[t.Extension]; ok {
				return k, nil
			}
			return "", fmt.Errorf("%s: detected %s: %w", url, t.MIME.Value, resource.ErrUnsupportedKind)
		}
	}
	return "", fmt.Errorf("%s: unknown format: %w", url, resource.ErrUnsupportedKind)
}
