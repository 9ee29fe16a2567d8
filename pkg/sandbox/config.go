// Package sandbox manages the disposable Docker environment the toolchain
// is built in, and bridges command execution into it.
package sandbox

import (
	_ "embed"
	"fmt"
	"io"
	"os"
)

//go:embed Dockerfile
var imageDefinition []byte

// Config holds the immutable sandbox settings for one run. Construct it
// once in cmd and pass it down; nothing mutates it afterwards.
type Config struct {
	// ImageName and ImageTag identify the sandbox image.
	ImageName string
	ImageTag  string
	// Dockerfile is the embedded image definition the image is built from.
	Dockerfile []byte
	// HostDir is the host workspace root, bind-mounted read-write.
	HostDir string
	// WorkDir is where HostDir appears inside the sandbox.
	WorkDir string
	// User is the uid:gid sandboxed processes run as, matching the
	// invoking host user so produced files stay host-writable.
	User string
	// Output receives image build progress. Defaults to discard.
	Output io.Writer
}

// DefaultConfig returns the standard configuration bound to hostDir.
func DefaultConfig(hostDir string) Config {
	return Config{
		ImageName:  "hephaestus/forge",
		ImageTag:   "latest",
		Dockerfile: imageDefinition,
		HostDir:    hostDir,
		WorkDir:    "/build",
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}
}

// Ref is the fully qualified image reference.
func (c Config) Ref() string {
	return c.ImageName + ":" + c.ImageTag
}
