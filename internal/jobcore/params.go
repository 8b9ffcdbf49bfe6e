package jobcore

// GenerateParams is the params shape for a TypeGenerate job.
type GenerateParams struct {
	Prompt            string  `json:"prompt"`
	Size              string  `json:"size"`
	Steps             int     `json:"steps"`
	CFG               float64 `json:"cfg"`
	Seed              uint64  `json:"seed"`
	Superres          bool    `json:"superres"`
	SuperresMagnitude int     `json:"superres_magnitude,omitempty"`
	InitImageRef      string  `json:"init_image_ref,omitempty"`
	DenoiseStrength   float64 `json:"denoise_strength,omitempty"`
}

// SRParams is the params shape for a TypeSR (standalone superresolution) job.
type SRParams struct {
	InitImageRef string `json:"init_image_ref"`
	Magnitude    int    `json:"magnitude"`
}

// ComfyParams is the params shape for a TypeComfy job.
type ComfyParams struct {
	WorkflowID string                 `json:"workflowId"`
	Params     map[string]interface{} `json:"params"`
	InputImage string                 `json:"inputImage"`
}

// ModeSwitchParams is the params shape for a TypeModeSwitch job.
type ModeSwitchParams struct {
	Mode string `json:"mode"`
}

// DreamTickParams is the params shape for a TypeDreamTick job, synthesized
// internally by the dream controller rather than submitted by a client.
type DreamTickParams struct {
	Prompt    string  `json:"prompt"`
	Size      string  `json:"size"`
	Steps     int     `json:"steps"`
	CFG       float64 `json:"cfg"`
	Seed      uint64  `json:"seed"`
	DreamTick int     `json:"dreamTick"`
}

// ValidateGenerateParams applies the BadRequest rules from the required
// params table: missing fields or out-of-range values are non-retriable.
func ValidateGenerateParams(p *GenerateParams) *Error {
	if p.Prompt == "" {
		return NewError(KindBadRequest, "prompt is required")
	}
	if p.Size == "" {
		return NewError(KindBadRequest, "size is required")
	}
	if p.Steps < 1 {
		return NewError(KindBadRequest, "steps must be >= 1")
	}
	if p.Superres && (p.SuperresMagnitude < 1 || p.SuperresMagnitude > 4) {
		return NewError(KindBadRequest, "superres_magnitude must be in 1..4")
	}
	if p.DenoiseStrength < 0 || p.DenoiseStrength > 1 {
		return NewError(KindBadRequest, "denoise_strength must be in 0..1")
	}
	return nil
}

// ValidateSRParams applies the required-params rule for standalone SR jobs.
func ValidateSRParams(p *SRParams) *Error {
	if p.InitImageRef == "" {
		return NewError(KindBadRequest, "init_image_ref is required")
	}
	if p.Magnitude < 1 || p.Magnitude > 4 {
		return NewError(KindBadRequest, "magnitude must be in 1..4")
	}
	return nil
}

// ValidateComfyParams applies the required-params rule for comfy jobs.
func ValidateComfyParams(p *ComfyParams) *Error {
	if p.WorkflowID == "" {
		return NewError(KindBadRequest, "workflowId is required")
	}
	return nil
}

// ValidateModeSwitchParams applies the required-params rule for mode
// switch jobs. Existence of the named mode is checked against the mode
// registry by the caller, not here.
func ValidateModeSwitchParams(p *ModeSwitchParams) *Error {
	if p.Mode == "" {
		return NewError(KindBadRequest, "mode is required")
	}
	return nil
}
