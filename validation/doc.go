// Package validation checks workload specs and references.
//
// Struct tag validation uses go-playground/validator with extra tags for
// Kubernetes-style names and resource quantities:
//
//	type Spec struct {
//	    Image  string `json:"image" validate:"required"`
//	    Memory string `json:"memory" validate:"omitempty,quantity"`
//	}
//	err := validation.Validate(spec)
//
// Programmatic validation collects field errors:
//
//	v := validation.New()
//	v.Required("name", ref.Name).DNSLabel("namespace", ref.Namespace)
//	err := v.Validate()
//
// Both return *errors.AppError with code INVALID_SPEC and per-field details.
package validation
