// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fixpoint

import (
	"sort"

	"github.com/awslabs/ar-taint-models/analysis/config"
	"github.com/awslabs/ar-taint-models/analysis/model"
	"gonum.org/v1/gonum/stat"
)

// RunStats summarizes the models of one run.
type RunStats struct {
	Methods    int
	Empty      int
	MeanSize   float64
	MedianSize float64
	P90Size    float64
	MaxSize    int
}

// modelSize is the number of taint-holding paths across all trees of the model.
func modelSize(m *model.Model) int {
	return m.Generations().LeafCount() +
		m.ParameterSources().LeafCount() +
		m.Sinks().LeafCount() +
		m.CallEffectSources().LeafCount() +
		m.CallEffectSinks().LeafCount() +
		m.Propagations().LeafCount()
}

// Stats computes size statistics over every model in the registry.
func Stats(r *Registry) RunStats {
	sizes := make([]float64, 0, r.Size())
	res := RunStats{}
	r.ForEach(func(_ model.Method, m *model.Model) {
		res.Methods++
		if m.Empty() {
			res.Empty++
		}
		size := modelSize(m)
		if size > res.MaxSize {
			res.MaxSize = size
		}
		sizes = append(sizes, float64(size))
	})
	if len(sizes) == 0 {
		return res
	}
	sort.Float64s(sizes)
	res.MeanSize = stat.Mean(sizes, nil)
	res.MedianSize = stat.Quantile(0.5, stat.Empirical, sizes, nil)
	res.P90Size = stat.Quantile(0.9, stat.Empirical, sizes, nil)
	return res
}

// LogStats computes and reports the run statistics at info level.
func LogStats(r *Registry, logger *config.LogGroup) RunStats {
	res := Stats(r)
	logger.Infof("models: %d (%d empty)", res.Methods, res.Empty)
	logger.Infof("model size: mean %.1f, median %.0f, p90 %.0f, max %d",
		res.MeanSize, res.MedianSize, res.P90Size, res.MaxSize)
	return res
}
