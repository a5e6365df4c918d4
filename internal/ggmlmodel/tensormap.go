package ggmlmodel

import (
	"fmt"
	"strings"

	"github.com/example/whispergo/internal/runtime/tensor"
)

// entry is a loaded tensor record plus bookkeeping needed by the loader to
// validate incoming records against a pre-registered shape table.
type entry struct {
	tensor *tensor.Tensor
	dtype  DType
}

// TensorMap is a hierarchical name→tensor resolver over a fully loaded
// model, in the spirit of a VarBuilder: Path composes dotted name prefixes,
// Tensor/TensorMaybe resolve leaf tensors with optional shape validation.
type TensorMap struct {
	entries map[string]entry
	prefix  string
}

func newTensorMap() *TensorMap {
	return &TensorMap{entries: make(map[string]entry)}
}

func (m *TensorMap) set(name string, t *tensor.Tensor, dtype DType) {
	m.entries[name] = entry{tensor: t, dtype: dtype}
}

func (m *TensorMap) Path(parts ...string) *TensorMap {
	if m == nil {
		return nil
	}

	prefix := m.prefix

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if prefix == "" {
			prefix = part
		} else {
			prefix += "." + part
		}
	}

	return &TensorMap{entries: m.entries, prefix: prefix}
}

func (m *TensorMap) Has(name string) bool {
	if m == nil {
		return false
	}

	_, ok := m.entries[m.resolve(name)]

	return ok
}

func (m *TensorMap) Tensor(name string, wantShape ...int64) (*tensor.Tensor, error) {
	if m == nil {
		return nil, newErr(KindUnknownTensorName, "Tensor", fmt.Errorf("nil tensor map"))
	}

	full := m.resolve(name)

	e, ok := m.entries[full]
	if !ok {
		return nil, newErr(KindUnknownTensorName, "Tensor", fmt.Errorf("%q", full))
	}

	if len(wantShape) > 0 && !equalShape(e.tensor.Shape(), wantShape) {
		return nil, newErr(KindTensorShapeMismatch, "Tensor", fmt.Errorf("%q: got %v want %v", full, e.tensor.Shape(), wantShape))
	}

	return e.tensor, nil
}

func (m *TensorMap) TensorMaybe(name string, wantShape ...int64) (*tensor.Tensor, bool, error) {
	if !m.Has(name) {
		return nil, false, nil
	}

	t, err := m.Tensor(name, wantShape...)
	if err != nil {
		return nil, true, err
	}

	return t, true, nil
}

// DType returns the on-disk storage type of the named tensor.
func (m *TensorMap) DType(name string) (DType, bool) {
	if m == nil {
		return 0, false
	}

	e, ok := m.entries[m.resolve(name)]
	if !ok {
		return 0, false
	}

	return e.dtype, true
}

func (m *TensorMap) resolve(name string) string {
	name = strings.TrimSpace(name)
	if m == nil || m.prefix == "" {
		return name
	}

	if name == "" {
		return m.prefix
	}

	return m.prefix + "." + name
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
