// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package grasp_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/born-ml/graspnet/grasp"
)

func TestMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcd0100cpos.txt")
	require.NoError(t, os.WriteFile(path, []byte("10 20\n50 20\n50 30\n10 30\n"), 0o600))
	gts, err := grasp.LoadCornell(path)
	require.NoError(t, err)
	require.Len(t, gts, 1)

	g := gts[0].Grasp()
	assert.InDelta(t, 30, g.Center.X, 1e-9)
	assert.InDelta(t, 40, g.Length, 1e-9)
	assert.True(t, grasp.Match(g, gts, grasp.DefaultThresholds()))

	turned := g
	turned.Angle += math.Pi / 3
	assert.False(t, grasp.Match(turned, gts, grasp.DefaultThresholds()))

	far := g
	far.Center = r2.Vec{X: 300, Y: 300}
	assert.InDelta(t, 0, grasp.IOU(far.Rectangle(), gts[0]), 1e-12)
}

func TestParamsRoundTrip(t *testing.T) {
	ps, err := grasp.BoxesToParams([]float64{10, 20, 50, 20, 50, 30, 10, 30}, grasp.Scale{X: 1, Y: 1})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	back := grasp.ParamsToBox(ps[0])
	assert.InDelta(t, 1, grasp.IOU(back, grasp.ParamsToBox(grasp.BoxToParams(back))), 1e-9)
	assert.InDelta(t, 0, grasp.AngleDiff(0.1, 0.1+math.Pi), 1e-12)
}
