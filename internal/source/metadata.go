package source

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Metadata identifies an input file.
type Metadata struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Key is the stable identity used to store offsets. It does not include size
// or modification time because both change while a file is appended to.
// URLs are used as they are; local paths are made absolute.
func (m Metadata) Key() string {
	if strings.Contains(m.Path, "://") {
		return m.Path
	}
	if abs, err := filepath.Abs(m.Path); err == nil {
		return abs
	}
	return m.Path
}

func (m Metadata) String() string {
	return fmt.Sprintf("%s (%d bytes)", m.Path, m.Size)
}

// Context is what a reader needs to open one source.
type Context struct {
	Metadata Metadata
	// Offset is the resume point; the zero value starts at the beginning.
	Offset SourceOffset
}
