package pool

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// ManagedLabel marks every container this service spawns, so a restart can
// find and force-remove stragglers from a prior run before spawning fresh
// ones.
const ManagedLabel = "xyz.runner.managed"

// NetworkName is the internal-only bridge network every sandbox attaches to
// and nothing else can reach from outside it.
const NetworkName = "runner-worker-net"

const agentHealthPort = 8000

// LifecycleConfig configures Sandbox Lifecycle provisioning.
type LifecycleConfig struct {
	Image       string
	PoolSize    int
	NamePrefix  string
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
}

// Lifecycle owns the Docker network and the set of spawned sandbox
// containers. Provisioning fills in slot Address fields; Teardown tears
// every container down.
type Lifecycle struct {
	cli *client.Client
	cfg LifecycleConfig
}

// NewLifecycle wraps a Docker client. Callers typically construct this with
// client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation()).
func NewLifecycle(cli *client.Client, cfg LifecycleConfig) *Lifecycle {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "runner-worker"
	}
	return &Lifecycle{cli: cli, cfg: cfg}
}

// Provision ensures the internal network exists, removes orphaned
// containers from a prior run, then spawns and health-polls cfg.PoolSize
// sandboxes. It returns the slots that became ready; a slot that never
// passed its readiness poll is dropped and logged, not retried. Pool
// initialization only fails (returns an error) if every slot failed.
func (l *Lifecycle) Provision(ctx context.Context) ([]*Slot, error) {
	if err := l.ensureNetwork(ctx); err != nil {
		return nil, fmt.Errorf("provision network: %w", err)
	}

	l.cleanupOrphans(ctx)

	slots := make([]*Slot, 0, l.cfg.PoolSize)
	for i := 0; i < l.cfg.PoolSize; i++ {
		slot, err := l.spawn(ctx, i)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("sandbox spawn failed, dropping slot")
			continue
		}
		slots = append(slots, slot)
	}

	if len(slots) == 0 && l.cfg.PoolSize > 0 {
		return nil, fmt.Errorf("all %d sandbox spawns failed", l.cfg.PoolSize)
	}
	return slots, nil
}

// ensureNetwork creates the internal-only bridge network if it does not
// already exist, and attaches this process's own container to it so it can
// reach sandboxes by address. Skipped (not an error) when this process is
// not itself running in a container.
func (l *Lifecycle) ensureNetwork(ctx context.Context) error {
	nets, err := l.cli.NetworkList(ctx, types.NetworkListOptions{
		Filters: filters.NewArgs(filters.Arg("name", NetworkName)),
	})
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}

	var netID string
	for _, n := range nets {
		if n.Name == NetworkName {
			netID = n.ID
			break
		}
	}

	if netID == "" {
		created, err := l.cli.NetworkCreate(ctx, NetworkName, types.NetworkCreate{
			Driver:     "bridge",
			Internal:   true,
			Attachable: true,
		})
		if err != nil {
			return fmt.Errorf("create network: %w", err)
		}
		netID = created.ID
		log.Info().Str("network", NetworkName).Msg("created internal sandbox network")
	}

	return l.connectSelf(ctx, netID)
}

// connectSelf attaches the running process's own container to the internal
// network, mirroring the original service's self-attach step. It is a
// no-op (not an error) when this process's hostname does not resolve to a
// container — i.e. bare-metal or local-dev mode.
func (l *Lifecycle) connectSelf(ctx context.Context, netID string) error {
	hostname, err := os.Hostname()
	if err != nil {
		return nil
	}

	if _, err := l.cli.ContainerInspect(ctx, hostname); err != nil {
		log.Debug().Msg("runner is not itself containerized, skipping self-attach")
		return nil
	}

	if err := l.cli.NetworkConnect(ctx, netID, hostname, &network.EndpointSettings{}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		log.Warn().Err(err).Msg("failed to attach runner to sandbox network")
	}
	return nil
}

func (l *Lifecycle) cleanupOrphans(ctx context.Context) {
	list, err := l.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedLabel+"=true")),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to list orphaned sandboxes")
		return
	}

	removed := 0
	for _, c := range list {
		if err := l.cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			log.Warn().Str("id", c.ID).Err(err).Msg("failed to remove orphaned sandbox")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("count", removed).Msg("removed orphaned sandboxes from a prior run")
	}
}

func (l *Lifecycle) spawn(ctx context.Context, index int) (*Slot, error) {
	name := fmt.Sprintf("%s-%d", l.cfg.NamePrefix, index)

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:   l.cfg.MemoryBytes,
			NanoCPUs: l.cfg.NanoCPUs,
			PidsLimit: func() *int64 {
				v := l.cfg.PidsLimit
				return &v
			}(),
		},
		Mounts: []mount.Mount{
			{Type: mount.TypeTmpfs, Target: "/tmp"},
		},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		NetworkMode:    container.NetworkMode(NetworkName),
		ReadonlyRootfs: false,
	}

	resp, err := l.cli.ContainerCreate(ctx,
		&container.Config{
			Image: l.cfg.Image,
			Env: []string{
				"PYTHONDONTWRITEBYTECODE=1",
				"PYTHONUNBUFFERED=1",
			},
			Labels: map[string]string{ManagedLabel: "true"},
		},
		hostConfig,
		nil,
		nil,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", name, err)
	}

	if err := l.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("start container %s: %w", name, err)
	}

	// Brief grace period for the internal-network IP to be assigned, matching
	// the original service's post-start delay.
	time.Sleep(500 * time.Millisecond)

	info, err := l.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", name, err)
	}

	ip := info.NetworkSettings.IPAddress
	if net, ok := info.NetworkSettings.Networks[NetworkName]; ok && net.IPAddress != "" {
		ip = net.IPAddress
	}
	if ip == "" {
		return nil, fmt.Errorf("container %s has no network address", name)
	}

	slot := &Slot{
		Name:        name,
		Address:     fmt.Sprintf("%s:%d", ip, agentHealthPort),
		containerID: resp.ID,
	}

	if !waitForReady(ctx, slot.URL()) {
		_ = l.destroy(context.Background(), resp.ID)
		return nil, fmt.Errorf("container %s never became ready", name)
	}

	return slot, nil
}

// waitForReady polls the sandbox's health endpoint up to 30 times at 500ms
// intervals.
func waitForReady(ctx context.Context, baseURL string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	for attempt := 0; attempt < 30; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return true
				}
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

func (l *Lifecycle) destroy(ctx context.Context, containerID string) error {
	timeout := 5
	if err := l.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		log.Warn().Str("id", containerID).Err(err).Msg("failed to stop sandbox")
	}
	if err := l.cli.ContainerRemove(ctx, containerID, types.ContainerRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

// Teardown stops and removes every slot's container. Idempotent: errors for
// already-gone containers are ignored.
func (l *Lifecycle) Teardown(ctx context.Context, slots []*Slot) {
	for _, s := range slots {
		if s.containerID == "" {
			continue
		}
		if err := l.destroy(ctx, s.containerID); err != nil {
			log.Warn().Str("slot", s.Name).Err(err).Msg("failed to tear down sandbox")
		}
	}
}
