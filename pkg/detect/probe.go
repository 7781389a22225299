package detect

import (
	"io/fs"
	"os"
)

// Probe is the filesystem access detection needs.
type Probe interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
}

// OSProbe reads the real filesystem.
type OSProbe struct{}

func (OSProbe) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }
func (OSProbe) ReadFile(path string) ([]byte, error)  { return os.ReadFile(path) }

func exists(p Probe, path string) bool {
	_, err := p.Stat(path)
	return err == nil
}
