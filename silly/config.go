package silly

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config holds the options spec.md §6 lists as recognized by the
// embedding layer. Field names follow the teacher's JSON-tagged
// config style (see client/config.go, server/config.go).
type Config struct {
	SocketQueueSize   int    `json:"socket_queue_size"`
	WorkerQueueHint   int    `json:"worker_queue_size"`
	TimerResolutionMS int    `json:"timer_resolution_ms"`
	ClusterHardLimit  int    `json:"cluster_hardlimit"`
	ClusterSoftLimit  int    `json:"cluster_softlimit"`
	Daemon            bool   `json:"daemon"`
	ProgName          string `json:"-"`
}

// DefaultConfig returns spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		SocketQueueSize:   1 << 16,
		WorkerQueueHint:   1024,
		TimerResolutionMS: 10,
		ClusterHardLimit:  128 << 20,
		ClusterSoftLimit:  65535,
	}
}

// LoadConfig reads a JSON config file and overlays it on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}
