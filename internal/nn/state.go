package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/graspnet/internal/tensor"
)

// StateDict maps parameter names to their tensors. The tensors are shared,
// not copied.
func StateDict(params []*Parameter) map[string]*tensor.Tensor {
	dict := make(map[string]*tensor.Tensor, len(params))
	for _, p := range params {
		dict[p.Name()] = p.Tensor()
	}
	return dict
}

// LoadStateDict copies values from dict into params.
//
// Every parameter must be present with an identical shape; extra entries in
// dict are reported as an error as well so that architecture drift is caught.
func LoadStateDict(params []*Parameter, dict map[string]*tensor.Tensor) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		src, ok := dict[p.Name()]
		if !ok {
			return fmt.Errorf("missing parameter %q in state dict", p.Name())
		}
		if !src.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("parameter %q: shape %v in state dict, model expects %v",
				p.Name(), src.Shape(), p.Tensor().Shape())
		}
		copy(p.Tensor().Data(), src.Data())
		seen[p.Name()] = true
	}
	var extra []string
	for name := range dict {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("unexpected parameters in state dict: %v", extra)
	}
	return nil
}
