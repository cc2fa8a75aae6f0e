package k8s

import (
	"fmt"

	liberr "github.com/mythologiq/gg-core/errors"
)

// Toleration is a pod toleration, data only: nothing here talks to a
// scheduler.
type Toleration struct {
	Key      string `json:"key"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
	Effect   string `json:"effect"`
}

// ResourceShape is the resource requests/limits, tolerations, and
// rollout strategy a deployment profile resolves to.
type ResourceShape struct {
	CPURequest      string       `json:"cpuRequest"`
	CPULimit        string       `json:"cpuLimit"`
	MemoryRequest   string       `json:"memoryRequest"`
	MemoryLimit     string       `json:"memoryLimit"`
	GPULimit        int          `json:"gpuLimit,omitempty"`
	Tolerations     []Toleration `json:"tolerations,omitempty"`
	RolloutStrategy string       `json:"rolloutStrategy"`
}

var gpuToleration = Toleration{Key: "nvidia.com/gpu", Operator: "Exists", Effect: "NoSchedule"}

// ResourceShape resolves r's profile (and, for MultiGpu, its gpuCount)
// into the concrete resource shape a deployment manifest would carry.
func (r GgCoreRuntime) ResourceShape() (ResourceShape, error) {
	switch r.Profile {
	case ProfileCPUOnly:
		return ResourceShape{
			CPURequest:      "2",
			CPULimit:        "4",
			MemoryRequest:   "4Gi",
			MemoryLimit:     "8Gi",
			RolloutStrategy: "RollingUpdate",
		}, nil
	case ProfileSingleGPU:
		return ResourceShape{
			CPURequest:      "4",
			CPULimit:        "8",
			MemoryRequest:   "16Gi",
			MemoryLimit:     "32Gi",
			GPULimit:        1,
			Tolerations:     []Toleration{gpuToleration},
			RolloutStrategy: "Recreate",
		}, nil
	case ProfileMultiGPU:
		if r.GPUCount <= 0 {
			return ResourceShape{}, liberr.New(liberr.MinPkgK8s+1, liberr.KindInvalidInput, "MultiGpu profile requires gpuCount > 0")
		}
		return ResourceShape{
			CPURequest:      "8",
			CPULimit:        "16",
			MemoryRequest:   "32Gi",
			MemoryLimit:     "64Gi",
			GPULimit:        r.GPUCount,
			Tolerations:     []Toleration{gpuToleration},
			RolloutStrategy: "Recreate",
		}, nil
	case ProfileHighMemory:
		return ResourceShape{
			CPURequest:      "4",
			CPULimit:        "8",
			MemoryRequest:   "64Gi",
			MemoryLimit:     "128Gi",
			RolloutStrategy: "RollingUpdate",
		}, nil
	default:
		return ResourceShape{}, liberr.New(liberr.MinPkgK8s+4, liberr.KindInvalidInput, fmt.Sprintf("unknown deployment profile: %s", r.Profile))
	}
}
