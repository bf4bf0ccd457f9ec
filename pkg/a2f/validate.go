package a2f

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visagekit/visage/pkg/engine"
)

// canonicalPath normalizes a model path for comparison. Backslashes
// become slashes, surrounding whitespace and trailing slashes drop, and
// one leading "./" is stripped.
func canonicalPath(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.TrimRight(s, "/ \t\r\n")
	s = strings.TrimLeft(s, " \t\r\n")
	return strings.TrimPrefix(s, "./")
}

// jsonKind returns the first significant byte of a raw JSON value,
// which identifies its type ('{', '[', '"', 't', 'f', 'n', digit, '-').
func jsonKind(raw json.RawMessage) byte {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

// parseJSONInt decodes raw as a JSON integer. Floats, strings and null
// are rejected.
func parseJSONInt(raw json.RawMessage) (int64, bool) {
	k := jsonKind(raw)
	if k != '-' && (k < '0' || k > '9') {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// parseFrameRate accepts either a bare positive integer or an object
// with positive integer numerator and denominator fields. On failure it
// returns a client-facing message.
func parseFrameRate(raw json.RawMessage) (num, den int, errMsg string) {
	switch k := jsonKind(raw); {
	case k == '-' || (k >= '0' && k <= '9'):
		fps, ok := parseJSONInt(raw)
		if !ok {
			break
		}
		if fps <= 0 {
			return 0, 0, "fps must be > 0"
		}
		return int(fps), 1, ""
	case k == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			break
		}
		numRaw, okNum := obj["numerator"]
		denRaw, okDen := obj["denominator"]
		if !okNum || !okDen {
			return 0, 0, "frame_rate must contain numerator and denominator"
		}
		n, okNum := parseJSONInt(numRaw)
		d, okDen := parseJSONInt(denRaw)
		if !okNum || !okDen {
			return 0, 0, "frame_rate numerator/denominator must be integers"
		}
		if n <= 0 || d <= 0 {
			return 0, 0, "frame_rate numerator/denominator must be > 0"
		}
		return int(n), int(d), ""
	}
	return 0, 0, "fps must be an integer or an object {numerator,denominator}"
}

// validateStartSession checks the request's optional fields against the
// offered session. Absent fields are accepted as-is; a present field
// that conflicts yields a client-facing message and false. Unknown
// fields are ignored.
func validateStartSession(req *StartSessionRequest, offer *SessionStarted) (string, bool) {
	if len(req.Model) > 0 {
		var model string
		if jsonKind(req.Model) != '"' {
			return "StartSession.model must be a string", false
		}
		if err := json.Unmarshal(req.Model, &model); err != nil {
			return "StartSession.model must be a string", false
		}
		actual := canonicalPath(offer.Model)
		if actual != "" && canonicalPath(model) != actual {
			return "Requested model does not match server model", false
		}
	}

	// frame_rate wins when both keys are present.
	raw := req.FrameRate
	if len(raw) == 0 {
		raw = req.FPS
	}
	if len(raw) > 0 {
		num, den, errMsg := parseFrameRate(raw)
		if errMsg != "" {
			return errMsg, false
		}
		if num != offer.FrameRate.Numerator || den != offer.FrameRate.Denominator {
			return fmt.Sprintf("Requested frame_rate %d/%d does not match server %d/%d",
				num, den, offer.FrameRate.Numerator, offer.FrameRate.Denominator), false
		}
	}

	if len(req.Options) > 0 {
		if jsonKind(req.Options) != '{' {
			return "StartSession.options must be an object", false
		}
		var opts struct {
			UseGpuSolver    json.RawMessage `json:"use_gpu_solver"`
			ExecutionOption json.RawMessage `json:"execution_option"`
		}
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return "StartSession.options must be an object", false
		}

		if len(opts.UseGpuSolver) > 0 {
			var useGpu bool
			if k := jsonKind(opts.UseGpuSolver); k != 't' && k != 'f' {
				return "options.use_gpu_solver must be boolean", false
			}
			if err := json.Unmarshal(opts.UseGpuSolver, &useGpu); err != nil {
				return "options.use_gpu_solver must be boolean", false
			}
			if useGpu != offer.Options.UseGpuSolver {
				return "options.use_gpu_solver does not match server", false
			}
		}

		if len(opts.ExecutionOption) > 0 {
			var exec string
			if jsonKind(opts.ExecutionOption) != '"' {
				return "options.execution_option must be a string", false
			}
			if err := json.Unmarshal(opts.ExecutionOption, &exec); err != nil {
				return "options.execution_option must be a string", false
			}
			actual := engine.CanonicalizeOption(offer.Options.ExecutionOption)
			if actual != "" && engine.CanonicalizeOption(exec) != actual {
				return "options.execution_option does not match server", false
			}
		}
	}

	return "", true
}
