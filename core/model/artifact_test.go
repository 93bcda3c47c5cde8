package model

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ezoic/salesforecast/pkg/errors"
)

func TestLoadArtifactValidation(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing version", `{"model_spec":{"name":"RobustScaler"},"params":{}}`, "format_version is required"},
		{"bad version", `{"model_spec":{"name":"RobustScaler","format_version":"2.0"},"params":{}}`, "unsupported format version: 2.0"},
		{"missing name", `{"model_spec":{"format_version":"1.0"},"params":{}}`, "model name is required"},
		{"missing params", `{"model_spec":{"name":"RobustScaler","format_version":"1.0"}}`, "params are required"},
		{"null params", `{"model_spec":{"name":"RobustScaler","format_version":"1.0"},"params":null}`, "params are required"},
		{"not json", `{"model_spec":`, "decode artifact JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifactFromReader(strings.NewReader(tt.src))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeParamsNameMismatch(t *testing.T) {
	a, err := LoadArtifactFromReader(strings.NewReader(
		`{"model_spec":{"name":"LabelEncoder","format_version":"1.0"},"params":{"classes":["a","b"]}}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var dst struct{}
	err = a.DecodeParams("RobustScaler", &dst)
	var ve *errors.ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValueError, got %v", err)
	}
	if ve.Message != "expected RobustScaler, got LabelEncoder" {
		t.Errorf("unexpected message %q", ve.Message)
	}

	var params struct {
		Classes []string `json:"classes"`
	}
	if err := a.DecodeParams("LabelEncoder", &params); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(params.Classes) != 2 || params.Classes[1] != "b" {
		t.Errorf("classes = %v", params.Classes)
	}
}

func TestExportLoadRoundTripFile(t *testing.T) {
	type rsParams struct {
		Center []float64 `json:"center"`
		Scale  []float64 `json:"scale"`
	}
	in := rsParams{Center: []float64{12}, Scale: []float64{31.5}}

	var buf bytes.Buffer
	if err := ExportArtifact("RobustScaler", "promo2_time_week", in, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(t.TempDir(), "promo_time_week_rs.json")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := LoadArtifactFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.ModelSpec.Feature != "promo2_time_week" {
		t.Errorf("feature = %q", a.ModelSpec.Feature)
	}
	var out rsParams
	if err := a.DecodeParams("RobustScaler", &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Center[0] != 12 || out.Scale[0] != 31.5 {
		t.Errorf("round trip changed params: %+v", out)
	}
}

func TestLoadArtifactFromFileMissing(t *testing.T) {
	_, err := LoadArtifactFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "open artifact") {
		t.Fatalf("expected open error, got %v", err)
	}
}
