package wire

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	liberr "github.com/mythologiq/gg-core/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateInferenceRequest enforces non-empty model id/prompt and sampling
// parameter bounds: max_tokens>0, temperature>=0, top_p in (0,1].
func ValidateInferenceRequest(req *InferenceRequest) error {
	if err := getValidator().Struct(req); err != nil {
		return liberr.New(liberr.MinPkgWire+10, liberr.KindInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		parts := make([]string, 0, len(verrs))
		for _, v := range verrs {
			parts = append(parts, v.Namespace()+" failed "+v.Tag())
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
