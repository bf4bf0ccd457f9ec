package a2f

import (
	"encoding/json"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"models/mark/model.json", "models/mark/model.json"},
		{"models\\mark\\model.json", "models/mark/model.json"},
		{"./models/model.json", "models/model.json"},
		{".\\models\\model.json", "models/model.json"},
		{"  models/model.json  ", "models/model.json"},
		{"models/model.json///", "models/model.json"},
		{"", ""},
		{" / ", ""},
	}

	for _, tt := range tests {
		if got := canonicalPath(tt.in); got != tt.want {
			t.Errorf("canonicalPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		num    int
		den    int
		errMsg string
	}{
		{"integer", `60`, 60, 1, ""},
		{"zero", `0`, 0, 0, "fps must be > 0"},
		{"negative", `-30`, 0, 0, "fps must be > 0"},
		{"float", `59.94`, 0, 0, "fps must be an integer or an object {numerator,denominator}"},
		{"string", `"60"`, 0, 0, "fps must be an integer or an object {numerator,denominator}"},
		{"null", `null`, 0, 0, "fps must be an integer or an object {numerator,denominator}"},
		{"bool", `true`, 0, 0, "fps must be an integer or an object {numerator,denominator}"},
		{"array", `[60,1]`, 0, 0, "fps must be an integer or an object {numerator,denominator}"},
		{"object", `{"numerator":30000,"denominator":1001}`, 30000, 1001, ""},
		{"object missing denominator", `{"numerator":60}`, 0, 0, "frame_rate must contain numerator and denominator"},
		{"object missing numerator", `{"denominator":1}`, 0, 0, "frame_rate must contain numerator and denominator"},
		{"object float numerator", `{"numerator":59.94,"denominator":1}`, 0, 0, "frame_rate numerator/denominator must be integers"},
		{"object string denominator", `{"numerator":60,"denominator":"1"}`, 0, 0, "frame_rate numerator/denominator must be integers"},
		{"object null numerator", `{"numerator":null,"denominator":1}`, 0, 0, "frame_rate numerator/denominator must be integers"},
		{"object zero denominator", `{"numerator":60,"denominator":0}`, 0, 0, "frame_rate numerator/denominator must be > 0"},
		{"object negative numerator", `{"numerator":-60,"denominator":1}`, 0, 0, "frame_rate numerator/denominator must be > 0"},
	}

	for _, tt := range tests {
		num, den, errMsg := parseFrameRate(json.RawMessage(tt.raw))
		if errMsg != tt.errMsg {
			t.Errorf("%s: errMsg = %q, want %q", tt.name, errMsg, tt.errMsg)
			continue
		}
		if errMsg == "" && (num != tt.num || den != tt.den) {
			t.Errorf("%s: rate = %d/%d, want %d/%d", tt.name, num, den, tt.num, tt.den)
		}
	}
}

func TestValidateStartSession(t *testing.T) {
	offer := &SessionStarted{
		Model: "models/mark/model.json",
		Options: SessionOptions{
			UseGpuSolver:    true,
			ExecutionOption: "SkinTongue",
		},
		FrameRate: FrameRate{Numerator: 60, Denominator: 1},
	}

	tests := []struct {
		name   string
		req    string
		errMsg string
	}{
		{"empty request", `{"type":"StartSession"}`, ""},
		{"unknown fields ignored", `{"type":"StartSession","locale":"en-US","volume":11}`, ""},

		{"model match", `{"type":"StartSession","model":"models/mark/model.json"}`, ""},
		{"model match with separators", `{"type":"StartSession","model":".\\models\\mark\\model.json"}`, ""},
		{"model match trailing slash", `{"type":"StartSession","model":"models/mark/model.json/"}`, ""},
		{"model mismatch", `{"type":"StartSession","model":"models/other/model.json"}`,
			"Requested model does not match server model"},
		{"model wrong type", `{"type":"StartSession","model":123}`,
			"StartSession.model must be a string"},
		{"model null", `{"type":"StartSession","model":null}`,
			"StartSession.model must be a string"},

		{"fps match", `{"type":"StartSession","fps":60}`, ""},
		{"fps mismatch", `{"type":"StartSession","fps":30}`,
			"Requested frame_rate 30/1 does not match server 60/1"},
		{"fps invalid", `{"type":"StartSession","fps":0}`, "fps must be > 0"},
		{"frame_rate object match", `{"type":"StartSession","frame_rate":{"numerator":60,"denominator":1}}`, ""},
		{"frame_rate object mismatch", `{"type":"StartSession","frame_rate":{"numerator":30000,"denominator":1001}}`,
			"Requested frame_rate 30000/1001 does not match server 60/1"},
		{"frame_rate preferred over fps", `{"type":"StartSession","fps":30,"frame_rate":{"numerator":60,"denominator":1}}`, ""},
		{"frame_rate bad loses to nothing", `{"type":"StartSession","fps":60,"frame_rate":"x"}`,
			"fps must be an integer or an object {numerator,denominator}"},

		{"options empty", `{"type":"StartSession","options":{}}`, ""},
		{"options wrong type", `{"type":"StartSession","options":"fast"}`,
			"StartSession.options must be an object"},
		{"options null", `{"type":"StartSession","options":null}`,
			"StartSession.options must be an object"},
		{"use_gpu_solver match", `{"type":"StartSession","options":{"use_gpu_solver":true}}`, ""},
		{"use_gpu_solver mismatch", `{"type":"StartSession","options":{"use_gpu_solver":false}}`,
			"options.use_gpu_solver does not match server"},
		{"use_gpu_solver wrong type", `{"type":"StartSession","options":{"use_gpu_solver":"yes"}}`,
			"options.use_gpu_solver must be boolean"},
		{"execution_option match", `{"type":"StartSession","options":{"execution_option":"SkinTongue"}}`, ""},
		{"execution_option separators", `{"type":"StartSession","options":{"execution_option":"skin_tongue"}}`, ""},
		{"execution_option case", `{"type":"StartSession","options":{"execution_option":"SKINTONGUE"}}`, ""},
		{"execution_option mismatch", `{"type":"StartSession","options":{"execution_option":"Skin"}}`,
			"options.execution_option does not match server"},
		{"execution_option wrong type", `{"type":"StartSession","options":{"execution_option":1}}`,
			"options.execution_option must be a string"},
	}

	for _, tt := range tests {
		var req StartSessionRequest
		if err := json.Unmarshal([]byte(tt.req), &req); err != nil {
			t.Fatalf("%s: unmarshal request: %v", tt.name, err)
		}
		msg, ok := validateStartSession(&req, offer)
		if tt.errMsg == "" {
			if !ok {
				t.Errorf("%s: rejected with %q, want accepted", tt.name, msg)
			}
			continue
		}
		if ok {
			t.Errorf("%s: accepted, want %q", tt.name, tt.errMsg)
			continue
		}
		if msg != tt.errMsg {
			t.Errorf("%s: message = %q, want %q", tt.name, msg, tt.errMsg)
		}
	}
}

func TestValidateStartSessionEmptyServerFields(t *testing.T) {
	// A server that advertises no model or execution option accepts any.
	offer := &SessionStarted{
		FrameRate: FrameRate{Numerator: 60, Denominator: 1},
	}

	var req StartSessionRequest
	raw := `{"type":"StartSession","model":"anything.json","options":{"execution_option":"Tongue"}}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if msg, ok := validateStartSession(&req, offer); !ok {
		t.Errorf("rejected with %q, want accepted", msg)
	}
}
