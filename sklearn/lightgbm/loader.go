package lightgbm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// maxLineSize bounds a single line of the text dump; feature_infos and tree arrays of
// large models easily exceed bufio's 64KiB default.
const maxLineSize = 64 << 20

// LoadFromFile loads a model from a LightGBM text dump or JSON dump. The format is
// detected from the content.
func LoadFromFile(filePath string) (*Model, error) {
	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, sfErrors.Wrapf(err, "read model %s", filePath)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return LoadFromJSON(trimmed)
	}
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromString loads a model from the text dump format.
func LoadFromString(modelStr string) (*Model, error) {
	return LoadFromReader(strings.NewReader(modelStr))
}

// LoadFromReader parses the text dump written by Booster.save_model. Parsing stops at
// "end of trees"; the feature importance and parameter sections are ignored.
func LoadFromReader(reader io.Reader) (*Model, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	model := NewModel()
	var (
		treeParams map[string]string
		treeIdx    int
		sawHeader  bool
	)

	flush := func() error {
		if treeParams == nil {
			return nil
		}
		tree, err := parseTextTree(treeIdx, treeParams)
		if err != nil {
			return err
		}
		model.Trees = append(model.Trees, tree)
		treeParams = nil
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case line == "end of trees":
			if err := flush(); err != nil {
				return nil, err
			}
			return finishModel(model, sawHeader)
		case line == "tree":
			sawHeader = true
			continue
		case line == "average_output":
			model.AverageOutput = true
			continue
		case strings.HasPrefix(line, "Tree="):
			if err := flush(); err != nil {
				return nil, err
			}
			idx, err := strconv.Atoi(strings.TrimPrefix(line, "Tree="))
			if err != nil {
				return nil, sfErrors.Wrapf(err, "invalid tree header %q", line)
			}
			treeIdx = idx
			treeParams = make(map[string]string)
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if treeParams != nil {
			treeParams[key] = value
			continue
		}
		if err := setHeaderField(model, key, value); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, sfErrors.Wrap(err, "read model")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return finishModel(model, sawHeader)
}

func setHeaderField(model *Model, key, value string) error {
	switch key {
	case "version":
		model.Version = value
	case "num_class":
		n, err := strconv.Atoi(value)
		if err != nil {
			return sfErrors.Wrap(err, "num_class")
		}
		model.NumClass = n
	case "max_feature_idx":
		n, err := strconv.Atoi(value)
		if err != nil {
			return sfErrors.Wrap(err, "max_feature_idx")
		}
		model.NumFeatures = n + 1
	case "objective":
		// e.g. "regression", "binary sigmoid:1", "tweedie tweedie_variance_power:1.5"
		if fields := strings.Fields(value); len(fields) > 0 {
			model.Objective = ObjectiveType(fields[0])
		}
	case "feature_names":
		model.FeatureNames = strings.Fields(value)
	}
	return nil
}

func finishModel(model *Model, sawHeader bool) (*Model, error) {
	if !sawHeader && len(model.Trees) == 0 {
		return nil, sfErrors.NewValueError("lightgbm.Load", "not a LightGBM model: no tree header")
	}
	if len(model.Trees) == 0 {
		return nil, sfErrors.NewValueError("lightgbm.Load", "model has no trees")
	}
	if model.NumClass != 1 {
		return nil, sfErrors.NewModelError("lightgbm.Load",
			fmt.Sprintf("num_class=%d", model.NumClass), sfErrors.ErrNotImplemented)
	}
	if model.NumFeatures <= 0 {
		return nil, sfErrors.NewValueError("lightgbm.Load", "max_feature_idx is missing")
	}
	if !model.Objective.IdentityOutput() {
		return nil, sfErrors.NewModelError("lightgbm.Load",
			fmt.Sprintf("objective=%s", model.Objective), sfErrors.ErrNotImplemented)
	}
	for i := range model.Trees {
		if err := validateTree(&model.Trees[i], model.NumFeatures); err != nil {
			return nil, err
		}
	}
	return model, nil
}

func parseTextTree(idx int, params map[string]string) (Tree, error) {
	tree := Tree{TreeIndex: idx, Shrinkage: 1}
	op := fmt.Sprintf("lightgbm.Tree[%d]", idx)

	numLeaves, err := strconv.Atoi(params["num_leaves"])
	if err != nil {
		return tree, sfErrors.Wrapf(err, "%s: num_leaves", op)
	}
	tree.NumLeaves = numLeaves

	if v := params["num_cat"]; v != "" && v != "0" {
		return tree, sfErrors.NewModelError(op, "categorical splits", sfErrors.ErrNotImplemented)
	}
	if v := params["is_linear"]; v != "" && v != "0" {
		return tree, sfErrors.NewModelError(op, "linear trees", sfErrors.ErrNotImplemented)
	}
	if v, ok := params["shrinkage"]; ok {
		if tree.Shrinkage, err = strconv.ParseFloat(v, 64); err != nil {
			return tree, sfErrors.Wrapf(err, "%s: shrinkage", op)
		}
	}

	if tree.LeafValue, err = parseFloatArray(params["leaf_value"]); err != nil {
		return tree, sfErrors.Wrapf(err, "%s: leaf_value", op)
	}
	if numLeaves <= 1 {
		return tree, nil
	}

	if tree.SplitFeature, err = parseIntArray(params["split_feature"]); err != nil {
		return tree, sfErrors.Wrapf(err, "%s: split_feature", op)
	}
	if tree.Threshold, err = parseFloatArray(params["threshold"]); err != nil {
		return tree, sfErrors.Wrapf(err, "%s: threshold", op)
	}
	if tree.LeftChild, err = parseIntArray(params["left_child"]); err != nil {
		return tree, sfErrors.Wrapf(err, "%s: left_child", op)
	}
	if tree.RightChild, err = parseIntArray(params["right_child"]); err != nil {
		return tree, sfErrors.Wrapf(err, "%s: right_child", op)
	}
	decisions, err := parseIntArray(params["decision_type"])
	if err != nil {
		return tree, sfErrors.Wrapf(err, "%s: decision_type", op)
	}
	tree.DecisionType = make([]int8, len(decisions))
	for i, d := range decisions {
		tree.DecisionType[i] = int8(d)
	}
	return tree, nil
}

// validateTree checks array lengths and child references so that prediction can
// index without bounds surprises.
func validateTree(t *Tree, numFeatures int) error {
	op := fmt.Sprintf("lightgbm.Tree[%d]", t.TreeIndex)
	if t.NumLeaves < 1 || len(t.LeafValue) != t.NumLeaves {
		return sfErrors.NewValueError(op, fmt.Sprintf("num_leaves=%d but %d leaf values", t.NumLeaves, len(t.LeafValue)))
	}
	internal := t.NumLeaves - 1
	for name, n := range map[string]int{
		"split_feature": len(t.SplitFeature),
		"threshold":     len(t.Threshold),
		"decision_type": len(t.DecisionType),
		"left_child":    len(t.LeftChild),
		"right_child":   len(t.RightChild),
	} {
		if n != internal {
			return sfErrors.NewValueError(op, fmt.Sprintf("%s has %d entries, expected %d", name, n, internal))
		}
	}
	for i := 0; i < internal; i++ {
		if t.DecisionType[i]&categoricalMask != 0 {
			return sfErrors.NewModelError(op, "categorical splits", sfErrors.ErrNotImplemented)
		}
		if f := t.SplitFeature[i]; f < 0 || f >= numFeatures {
			return sfErrors.NewValueError(op, fmt.Sprintf("split_feature %d out of range [0,%d)", f, numFeatures))
		}
		// children are always numbered after their parent; anything else is a cycle
		for _, c := range []int{t.LeftChild[i], t.RightChild[i]} {
			if (c >= 0 && (c <= i || c >= internal)) || (c < 0 && ^c >= t.NumLeaves) {
				return sfErrors.NewValueError(op, fmt.Sprintf("node %d has invalid child %d", i, c))
			}
		}
	}
	return nil
}

func parseIntArray(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloatArray(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LightGBMJSON is the document returned by Booster.dump_model().
type LightGBMJSON struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	NumClass      int            `json:"num_class"`
	MaxFeatureIdx int            `json:"max_feature_idx"`
	Objective     string         `json:"objective"`
	AverageOutput bool           `json:"average_output"`
	FeatureNames  []string       `json:"feature_names"`
	TreeInfo      []TreeInfoJSON `json:"tree_info"`
}

// TreeInfoJSON is one entry of tree_info.
type TreeInfoJSON struct {
	TreeIndex     int       `json:"tree_index"`
	NumLeaves     int       `json:"num_leaves"`
	NumCat        int       `json:"num_cat"`
	Shrinkage     float64   `json:"shrinkage"`
	TreeStructure *NodeJSON `json:"tree_structure"`
}

// NodeJSON is a node of the nested tree_structure. Leaves carry LeafValue and no
// children.
type NodeJSON struct {
	SplitIndex   *int            `json:"split_index"`
	SplitFeature int             `json:"split_feature"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	DefaultLeft  bool            `json:"default_left"`
	MissingType  string          `json:"missing_type"`
	LeftChild    *NodeJSON       `json:"left_child"`
	RightChild   *NodeJSON       `json:"right_child"`
	LeafIndex    int             `json:"leaf_index"`
	LeafValue    float64         `json:"leaf_value"`
}

// LoadFromJSON loads a model from the JSON dump.
func LoadFromJSON(jsonData []byte) (*Model, error) {
	var doc LightGBMJSON
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, sfErrors.Wrap(err, "parse LightGBM JSON")
	}
	return doc.ToModel()
}

// ToModel flattens the nested JSON trees into the array layout of the text dump.
func (doc *LightGBMJSON) ToModel() (*Model, error) {
	model := NewModel()
	model.Version = doc.Version
	model.NumClass = doc.NumClass
	model.NumFeatures = doc.MaxFeatureIdx + 1
	model.FeatureNames = doc.FeatureNames
	model.AverageOutput = doc.AverageOutput
	if fields := strings.Fields(doc.Objective); len(fields) > 0 {
		model.Objective = ObjectiveType(fields[0])
	}

	for _, info := range doc.TreeInfo {
		op := fmt.Sprintf("lightgbm.Tree[%d]", info.TreeIndex)
		if info.NumCat > 0 {
			return nil, sfErrors.NewModelError(op, "categorical splits", sfErrors.ErrNotImplemented)
		}
		if info.TreeStructure == nil || info.NumLeaves < 1 {
			return nil, sfErrors.NewValueError(op, "missing tree_structure")
		}
		tree := Tree{
			TreeIndex:    info.TreeIndex,
			NumLeaves:    info.NumLeaves,
			Shrinkage:    info.Shrinkage,
			LeafValue:    make([]float64, info.NumLeaves),
			SplitFeature: make([]int, info.NumLeaves-1),
			Threshold:    make([]float64, info.NumLeaves-1),
			DecisionType: make([]int8, info.NumLeaves-1),
			LeftChild:    make([]int, info.NumLeaves-1),
			RightChild:   make([]int, info.NumLeaves-1),
		}
		if _, err := flattenNode(&tree, info.TreeStructure); err != nil {
			return nil, sfErrors.Wrap(err, op)
		}
		model.Trees = append(model.Trees, tree)
	}
	return finishModel(model, true)
}

// flattenNode writes n into tree and returns its child reference (>= 0 internal
// node, < 0 leaf).
func flattenNode(tree *Tree, n *NodeJSON) (int, error) {
	if n.LeftChild == nil && n.RightChild == nil {
		if n.LeafIndex < 0 || n.LeafIndex >= tree.NumLeaves {
			return 0, sfErrors.Newf("leaf_index %d out of range", n.LeafIndex)
		}
		tree.LeafValue[n.LeafIndex] = n.LeafValue
		return ^n.LeafIndex, nil
	}
	if n.LeftChild == nil || n.RightChild == nil || n.SplitIndex == nil {
		return 0, sfErrors.New("internal node without both children or split_index")
	}
	i := *n.SplitIndex
	if i < 0 || i >= len(tree.SplitFeature) {
		return 0, sfErrors.Newf("split_index %d out of range", i)
	}
	if n.DecisionType != "" && n.DecisionType != "<=" {
		return 0, sfErrors.NewModelError("lightgbm.flattenNode",
			fmt.Sprintf("decision_type %q", n.DecisionType), sfErrors.ErrNotImplemented)
	}
	threshold, err := strconv.ParseFloat(strings.Trim(string(n.Threshold), `"`), 64)
	if err != nil {
		return 0, sfErrors.Wrapf(err, "split %d threshold", i)
	}

	var decision int8
	if n.DefaultLeft {
		decision |= defaultLeftMask
	}
	switch n.MissingType {
	case "", "None":
	case "Zero":
		decision |= int8(MissingZero) << 2
	case "NaN":
		decision |= int8(MissingNaN) << 2
	default:
		return 0, sfErrors.Newf("split %d: unknown missing_type %q", i, n.MissingType)
	}

	tree.SplitFeature[i] = n.SplitFeature
	tree.Threshold[i] = threshold
	tree.DecisionType[i] = decision

	if tree.LeftChild[i], err = flattenNode(tree, n.LeftChild); err != nil {
		return 0, err
	}
	if tree.RightChild[i], err = flattenNode(tree, n.RightChild); err != nil {
		return 0, err
	}
	return i, nil
}
