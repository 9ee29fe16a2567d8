package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/uuid"
)

// Manager owns the sandbox lifecycle: image build or reuse, container
// start, and guaranteed teardown.
type Manager struct {
	client client.APIClient
	cfg    Config
	logger *slog.Logger
}

// NewManager connects to the Docker daemon and verifies it is reachable.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to docker: %w", err)
	}

	return &Manager{client: cli, cfg: cfg, logger: logger}, nil
}

// ImageExists reports whether the sandbox image is locally available under
// its exact repository:tag reference.
func (m *Manager) ImageExists(ctx context.Context) (bool, error) {
	images, err := m.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", m.cfg.Ref())),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(images) > 0, nil
}

// BuildImage builds the sandbox image from the embedded definition. The
// build is skipped when the image already exists, unless force is set.
// Builds never use the layer cache, so the result is reproducible from
// the embedded definition alone.
func (m *Manager) BuildImage(ctx context.Context, force bool) error {
	if !force {
		exists, err := m.ImageExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			m.logger.Info("sandbox image present, skipping build", "image", m.cfg.Ref())
			return nil
		}
	}

	m.logger.Info("building sandbox image", "image", m.cfg.Ref())
	buildCtx, err := buildContextTar(m.cfg.Dockerfile)
	if err != nil {
		return fmt.Errorf("failed to assemble build context: %w", err)
	}

	resp, err := m.client.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{m.cfg.Ref()},
		Dockerfile:  "Dockerfile",
		NoCache:     true,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	out := m.cfg.Output
	if out == nil {
		out = io.Discard
	}
	// The daemon reports build failures inside the JSON stream, not as a
	// transport error; the stream decoder surfaces them.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	return nil
}

// buildContextTar wraps the image definition in a single-entry tar
// stream, the format the daemon expects as a build context.
func buildContextTar(dockerfile []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: "Dockerfile", Mode: 0o644, Size: int64(len(dockerfile))}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write(dockerfile); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Handle identifies the running sandbox container for one run. It is
// owned by the Manager; Stop releases it exactly once.
type Handle struct {
	id   string
	name string
	stop sync.Once
}

// ID returns the container ID.
func (h *Handle) ID() string { return h.id }

// Name returns the container name.
func (h *Handle) Name() string { return h.name }

// Start launches the long-lived sandbox container: detached, bound to the
// host workspace read-write, running as the invoking user, kept alive
// until explicitly stopped. One sandbox serves every stage of the run.
func (m *Manager) Start(ctx context.Context) (*Handle, error) {
	name := "hephaestus-build-" + uuid.NewString()[:8]

	containerCfg := &container.Config{
		Image:      m.cfg.Ref(),
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: m.cfg.WorkDir,
		User:       m.cfg.User,
		Labels: map[string]string{
			"hephaestus.run": name,
		},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: m.cfg.HostDir,
			Target: m.cfg.WorkDir,
		}},
	}

	resp, err := m.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on failure
		_ = m.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start sandbox: %w", err)
	}

	m.logger.Info("sandbox started", "container", name, "mount", m.cfg.HostDir)
	return &Handle{id: resp.ID, name: name}, nil
}

// Stop terminates the sandbox and removes the container. Only the first
// call acts; later calls return nil.
func (m *Manager) Stop(ctx context.Context, h *Handle) error {
	var err error
	h.stop.Do(func() {
		m.logger.Info("stopping sandbox", "container", h.name)
		if rmErr := m.client.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true}); rmErr != nil {
			err = fmt.Errorf("failed to remove sandbox: %w", rmErr)
		}
	})
	return err
}

// Session binds the exec bridge to one running handle so callers that
// only execute commands need not hold the Manager and Handle separately.
func (m *Manager) Session(h *Handle) *Session {
	return &Session{m: m, h: h}
}
