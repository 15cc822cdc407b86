package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact filename convention shared with the offline training pipeline.
const (
	fileModelPriceRF    = "price_rf_model.json"
	fileModelPriceGB    = "price_gb_model.json"
	fileModelPriceLR    = "price_lr_model.json"
	fileModelDiscount   = "discount_model.json"
	fileModelVolatility = "volatility_model.json"

	fileScalerPrice      = "price_scaler.json"
	fileScalerDiscount   = "discount_scaler.json"
	fileScalerVolatility = "volatility_scaler.json"

	fileEncoderBrand           = "brand_encoder.json"
	fileEncoderMainCategory    = "main_category_encoder.json"
	fileEncoderSubCategory     = "sub_category_encoder.json"
	fileEncoderProductCategory = "product_category_encoder.json"
)

// regressor is a loaded model ready for single-row inference.
type regressor interface {
	Predict(features []float64) float64
}

// linearModel is an ordinary least-squares fit.
type linearModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (m *linearModel) Predict(features []float64) float64 {
	out := m.Intercept
	for i, c := range m.Coefficients {
		if i < len(features) {
			out += c * features[i]
		}
	}
	return out
}

// decisionTree holds one tree in flattened node-array form: internal nodes
// carry a feature index and threshold, leaves have Feature == -1.
type decisionTree struct {
	Feature    []int     `json:"feature"`
	Threshold  []float64 `json:"threshold"`
	ChildLeft  []int     `json:"child_left"`
	ChildRight []int     `json:"child_right"`
	Value      []float64 `json:"value"`
}

func (t *decisionTree) predict(features []float64) float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if features[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildLeft[node]
		} else {
			node = t.ChildRight[node]
		}
	}
	return t.Value[node]
}

func (t *decisionTree) validate() error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Threshold) != n || len(t.ChildLeft) != n || len(t.ChildRight) != n || len(t.Value) != n {
		return fmt.Errorf("tree node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		if t.Feature[i] < 0 {
			continue
		}
		if t.ChildLeft[i] <= i || t.ChildLeft[i] >= n || t.ChildRight[i] <= i || t.ChildRight[i] >= n {
			return fmt.Errorf("tree node %d has out-of-range children", i)
		}
	}
	return nil
}

// treeEnsemble aggregates trees either by averaging (random forest) or by
// summing onto a base score (gradient boosting).
type treeEnsemble struct {
	Aggregate string         `json:"aggregate"`
	BaseScore float64        `json:"base_score"`
	Trees     []decisionTree `json:"trees"`
}

func (e *treeEnsemble) Predict(features []float64) float64 {
	sum := 0.0
	for i := range e.Trees {
		sum += e.Trees[i].predict(features)
	}
	if e.Aggregate == "sum" {
		return e.BaseScore + sum
	}
	return sum / float64(len(e.Trees))
}

func (e *treeEnsemble) validate() error {
	if len(e.Trees) == 0 {
		return fmt.Errorf("ensemble has no trees")
	}
	for i := range e.Trees {
		if err := e.Trees[i].validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// standardScaler applies (x - mean) / scale per column.
type standardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *standardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) || len(features) != len(s.Scale) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(features))
	}
	out := make([]float64, len(features))
	for i, v := range features {
		div := s.Scale[i]
		if div == 0 {
			div = 1
		}
		out[i] = (v - s.Mean[i]) / div
	}
	return out, nil
}

// labelEncoder maps class labels to their training-time integer codes.
type labelEncoder struct {
	classes map[string]int
}

// Encode returns the trained code for a label, or the unknown sentinel for
// labels never seen at training time. Unknown values must not fail a
// prediction.
func (e *labelEncoder) Encode(value string) float64 {
	if code, ok := e.classes[value]; ok {
		return float64(code)
	}
	return unknownCategory
}

type modelFile struct {
	Type string `json:"type"`
	linearModel
	treeEnsemble
}

func loadModel(dir, name string) (regressor, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", name, err)
	}

	var file modelFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}

	switch file.Type {
	case "linear":
		m := file.linearModel
		return &m, nil
	case "tree_ensemble":
		e := file.treeEnsemble
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("decode artifact %s: %w", name, err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("decode artifact %s: unsupported model type %q", name, file.Type)
	}
}

func loadScaler(dir, name string) (*standardScaler, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", name, err)
	}

	var scaler standardScaler
	if err := json.Unmarshal(raw, &scaler); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	if len(scaler.Mean) == 0 || len(scaler.Mean) != len(scaler.Scale) {
		return nil, fmt.Errorf("decode artifact %s: mean/scale arrays invalid", name)
	}
	return &scaler, nil
}

func loadEncoder(dir, name string) (*labelEncoder, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", name, err)
	}

	var file struct {
		Classes []string `json:"classes"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	if len(file.Classes) == 0 {
		return nil, fmt.Errorf("decode artifact %s: empty class list", name)
	}

	classes := make(map[string]int, len(file.Classes))
	for i, class := range file.Classes {
		classes[class] = i
	}
	return &labelEncoder{classes: classes}, nil
}
