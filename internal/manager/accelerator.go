package manager

import (
	"os/exec"

	"scoped/internal/common/fsutil"
)

// acceleratorNodes are device files exposed by CUDA, ROCm and WSL GPU drivers.
var acceleratorNodes = []string{"/dev/nvidia0", "/dev/nvidiactl", "/dev/kfd", "/dev/dxg"}

// ProbeAccelerator checks for a compatible accelerator. It does not mutate
// state and is safe to call at any time. A missing device is reported as a
// ResourceUnavailable error.
func ProbeAccelerator() error {
	for _, p := range acceleratorNodes {
		if fsutil.PathExists(p) {
			return nil
		}
	}
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return nil
	}
	return ErrResourceUnavailable("no compatible accelerator found (CUDA/ROCm device not present); pipelines may run slowly or fail")
}
