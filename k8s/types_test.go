package k8s_test

import (
	"testing"

	"github.com/mythologiq/gg-core/k8s"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestK8s(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "K8s Suite")
}

func validRuntime() k8s.GgCoreRuntime {
	return k8s.GgCoreRuntime{
		Name:       "gg-core",
		Namespace:  "inference",
		Image:      "registry.internal/gg-core:1.0.0",
		SocketPath: "/var/run/gg-core/gg-core.sock",
		Profile:    k8s.ProfileCPUOnly,
		Replicas:   1,
	}
}

func validModel() k8s.GgCoreModel {
	return k8s.GgCoreModel{
		Name:      "llama-7b",
		Path:      "/models/llama-7b.gguf",
		Tier:      "default",
		SizeBytes: 4 * 1024 * 1024 * 1024,
	}
}

var _ = Describe("GgCoreRuntime", func() {
	It("accepts a well-formed runtime manifest", func() {
		Expect(validRuntime().Validate()).To(Succeed())
	})

	It("rejects an image reference containing shell metacharacters", func() {
		r := validRuntime()
		r.Image = "registry.internal/gg-core:1.0.0; rm -rf /"
		Expect(r.Validate()).To(HaveOccurred())
	})

	It("rejects a relative socket path", func() {
		r := validRuntime()
		r.SocketPath = "var/run/gg-core.sock"
		Expect(r.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown deployment profile", func() {
		r := validRuntime()
		r.Profile = "QuantumGpu"
		Expect(r.Validate()).To(HaveOccurred())
	})

	It("requires gpuCount > 0 for the MultiGpu profile", func() {
		r := validRuntime()
		r.Profile = k8s.ProfileMultiGPU
		r.GPUCount = 0
		Expect(r.Validate()).To(HaveOccurred())

		r.GPUCount = 4
		Expect(r.Validate()).To(Succeed())
	})

	It("rejects zero replicas", func() {
		r := validRuntime()
		r.Replicas = 0
		Expect(r.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("GgCoreModel", func() {
	It("accepts a well-formed model manifest", func() {
		Expect(validModel().Validate()).To(Succeed())
	})

	It("rejects a model id with disallowed characters", func() {
		m := validModel()
		m.Name = "llama 7b!!"
		Expect(m.Validate()).To(HaveOccurred())
	})

	It("rejects a path containing a parent-directory component", func() {
		m := validModel()
		m.Path = "/models/../../etc/passwd"
		Expect(m.Validate()).To(HaveOccurred())
	})

	It("rejects a path containing a NUL byte", func() {
		m := validModel()
		m.Path = "/models/llama\x00.gguf"
		Expect(m.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown tier", func() {
		m := validModel()
		m.Tier = "ultra"
		Expect(m.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("ResourceShape", func() {
	It("resolves CpuOnly to a GPU-free shape", func() {
		r := validRuntime()
		shape, err := r.ResourceShape()
		Expect(err).NotTo(HaveOccurred())
		Expect(shape.GPULimit).To(Equal(0))
		Expect(shape.RolloutStrategy).To(Equal("RollingUpdate"))
	})

	It("resolves MultiGpu to a tolerated, gpu-sized shape", func() {
		r := validRuntime()
		r.Profile = k8s.ProfileMultiGPU
		r.GPUCount = 8
		shape, err := r.ResourceShape()
		Expect(err).NotTo(HaveOccurred())
		Expect(shape.GPULimit).To(Equal(8))
		Expect(shape.Tolerations).To(HaveLen(1))
		Expect(shape.RolloutStrategy).To(Equal("Recreate"))
	})

	It("errors resolving MultiGpu with no gpuCount set", func() {
		r := validRuntime()
		r.Profile = k8s.ProfileMultiGPU
		r.GPUCount = 0
		_, err := r.ResourceShape()
		Expect(err).To(HaveOccurred())
	})
})
