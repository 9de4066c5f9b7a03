package gallery

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Identity is a known person. ID is the unique key (roll or employee number).
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// supportedExtensions lists the image types decodable by internal/imaging.
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
}

// IsSupportedImage reports whether the file name has a supported image extension.
func IsSupportedImage(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ParseFilename extracts an identity from a gallery file name of the form
// <id>_<name>.<ext>. Only the first underscore separates the two parts.
func ParseFilename(name string) (Identity, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	id, displayName, ok := strings.Cut(stem, "_")
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)
	if !ok || id == "" || displayName == "" {
		return Identity{}, fmt.Errorf("%w: %q (expected <id>_<name>.<ext>)", ErrMalformedFilename, base)
	}

	return Identity{ID: id, DisplayName: displayName}, nil
}
