package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ezoic/salesforecast/pkg/errors"
)

// ArtifactFormatVersion is the only envelope version understood by this package.
const ArtifactFormatVersion = "1.0"

// ArtifactSpec is the metadata block of a fitted-parameter artifact.
type ArtifactSpec struct {
	Name           string `json:"name"`                      // estimator name, e.g. "RobustScaler"
	FormatVersion  string `json:"format_version"`            // envelope version
	SKLearnVersion string `json:"sklearn_version,omitempty"` // version the parameters were fitted with
	Feature        string `json:"feature,omitempty"`         // column the estimator was fitted on
}

// Artifact is a fitted estimator exported from the training notebook:
//
//	{"model_spec": {"name": "RobustScaler", "format_version": "1.0"},
//	 "params": {"center": [12.0], "scale": [31.0]}}
type Artifact struct {
	ModelSpec ArtifactSpec    `json:"model_spec"`
	Params    json.RawMessage `json:"params"`
}

// LoadArtifactFromFile reads an artifact from a JSON file.
func LoadArtifactFromFile(filename string) (*Artifact, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open artifact %s", filename)
	}
	defer func() { _ = file.Close() }()

	a, err := LoadArtifactFromReader(file)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", filename)
	}
	return a, nil
}

// LoadArtifactFromReader decodes and validates an artifact envelope.
func LoadArtifactFromReader(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode artifact JSON")
	}

	if a.ModelSpec.FormatVersion == "" {
		return nil, errors.NewValueError("LoadArtifact", "format_version is required")
	}
	if a.ModelSpec.FormatVersion != ArtifactFormatVersion {
		return nil, errors.NewValueError("LoadArtifact",
			fmt.Sprintf("unsupported format version: %s", a.ModelSpec.FormatVersion))
	}
	if a.ModelSpec.Name == "" {
		return nil, errors.NewValueError("LoadArtifact", "model name is required")
	}
	if len(bytes.TrimSpace(a.Params)) == 0 || bytes.Equal(bytes.TrimSpace(a.Params), []byte("null")) {
		return nil, errors.NewValueError("LoadArtifact", fmt.Sprintf("%s: params are required", a.ModelSpec.Name))
	}

	return &a, nil
}

// DecodeParams checks that the artifact holds an estimator called name and unmarshals
// its parameters into v.
func (a *Artifact) DecodeParams(name string, v interface{}) error {
	if a.ModelSpec.Name != name {
		return errors.NewValueError("DecodeParams",
			fmt.Sprintf("expected %s, got %s", name, a.ModelSpec.Name))
	}
	if err := json.Unmarshal(a.Params, v); err != nil {
		return errors.Wrapf(err, "unmarshal %s params", name)
	}
	return nil
}

// ExportArtifact writes params in the artifact envelope. Used by tooling that refits
// transforms and by tests building fixtures.
func ExportArtifact(name, feature string, params interface{}, w io.Writer) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return errors.Wrapf(err, "marshal %s params", name)
	}

	a := Artifact{
		ModelSpec: ArtifactSpec{
			Name:          name,
			FormatVersion: ArtifactFormatVersion,
			Feature:       feature,
		},
		Params: paramsJSON,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&a); err != nil {
		return errors.Wrapf(err, "encode %s artifact", name)
	}
	return nil
}
