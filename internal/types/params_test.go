package types

import (
	"encoding/json"
	"testing"
)

func TestParamValue_String(t *testing.T) {
	tests := []struct {
		name  string
		value ParamValue
		want  string
	}{
		{"string", StringParam("career anxiety"), "career anxiety"},
		{"integral number drops decimal", NumberParam(6), "6"},
		{"fractional number", NumberParam(0.75), "0.75"},
		{"bool", BoolParam(true), "true"},
		{"list renders comma separated", ListParam(StringParam("fear"), StringParam("hope")), "fear, hope"},
		{"zero value renders empty", ParamValue{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParamValue_UnmarshalInfersKind(t *testing.T) {
	var params Params
	raw := `{"topic": "grief", "turn_count": 8, "include_safety": true, "emotions": ["fear", "hope"], "persona": {"age": 30}}`
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	wantKinds := map[string]ParamKind{
		"topic":          ParamString,
		"turn_count":     ParamNumber,
		"include_safety": ParamBool,
		"emotions":       ParamList,
		"persona":        ParamMap,
	}
	for key, want := range wantKinds {
		if got := params[key].Kind; got != want {
			t.Errorf("params[%q].Kind = %q, want %q", key, got, want)
		}
	}

	if got := params["emotions"].String(); got != "fear, hope" {
		t.Errorf("emotions rendered %q", got)
	}

	var bad ParamValue
	if err := json.Unmarshal([]byte("null"), &bad); err == nil {
		t.Error("expected error for null param value")
	}
}
