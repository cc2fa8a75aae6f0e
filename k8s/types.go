// Package k8s defines the CRD-shaped collaborator types a Kubernetes
// operator would marshal into and out of this runtime's deployment and
// model manifests. It validates those shapes; it never talks to a live
// cluster.
package k8s

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	liberr "github.com/mythologiq/gg-core/errors"
)

var (
	modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	shellMetaChars  = regexp.MustCompile("[;|&$`<>\\n\\\\]")
)

func validateImageRef(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return v != "" && !shellMetaChars.MatchString(v)
}

func validateFSPath(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" || strings.ContainsRune(v, 0) {
		return false
	}
	for _, part := range strings.Split(v, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func validateModelID(fl validator.FieldLevel) bool {
	return modelIDPattern.MatchString(fl.Field().String())
}

func validateAbsolutePath(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "/")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("image-ref", validateImageRef)
	_ = v.RegisterValidation("fs-path", validateFSPath)
	_ = v.RegisterValidation("model-id", validateModelID)
	_ = v.RegisterValidation("absolute-path", validateAbsolutePath)
	return v
}

// ProfileKind names a resource-shape preset for a GgCoreRuntime deployment.
type ProfileKind string

const (
	ProfileCPUOnly    ProfileKind = "CpuOnly"
	ProfileSingleGPU  ProfileKind = "SingleGpu"
	ProfileMultiGPU   ProfileKind = "MultiGpu"
	ProfileHighMemory ProfileKind = "HighMemory"
)

// GgCoreRuntime is the CRD-shaped description of one running deployment.
type GgCoreRuntime struct {
	Name       string      `json:"name" validate:"required"`
	Namespace  string      `json:"namespace" validate:"required"`
	Image      string      `json:"image" validate:"required,image-ref"`
	SocketPath string      `json:"socketPath" validate:"required,absolute-path"`
	Profile    ProfileKind `json:"profile" validate:"required,oneof=CpuOnly SingleGpu MultiGpu HighMemory"`
	GPUCount   int         `json:"gpuCount,omitempty" validate:"omitempty,gt=0"`
	Replicas   int32       `json:"replicas" validate:"gte=1"`
}

// Validate checks a GgCoreRuntime's struct tags and the profile/gpuCount
// cross-field rule (MultiGpu requires GPUCount > 0).
func (r GgCoreRuntime) Validate() error {
	if err := runValidate(r); err != nil {
		return err
	}
	if r.Profile == ProfileMultiGPU && r.GPUCount <= 0 {
		return liberr.New(liberr.MinPkgK8s+1, liberr.KindInvalidInput, "MultiGpu profile requires gpuCount > 0")
	}
	return nil
}

// GgCoreModel is the CRD-shaped description of one model the runtime
// should be able to load.
type GgCoreModel struct {
	Name      string `json:"name" validate:"required,model-id"`
	Path      string `json:"path" validate:"required,fs-path"`
	Tier      string `json:"tier" validate:"required,oneof=testing default quality"`
	SizeBytes uint64 `json:"sizeBytes" validate:"gte=0"`
}

// Validate checks a GgCoreModel's struct tags.
func (m GgCoreModel) Validate() error {
	return runValidate(m)
}

func runValidate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return liberr.New(liberr.MinPkgK8s+2, liberr.KindInvalidInput, "validation failed", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed constraint %q", fe.StructNamespace(), fe.ActualTag()))
	}
	return liberr.New(liberr.MinPkgK8s+3, liberr.KindInvalidInput, strings.Join(msgs, "; "))
}
