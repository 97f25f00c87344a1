// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package grasp provides grasp rectangle geometry and the grasp success
// metric.
//
// Coordinates are image coordinates: X is the column and Y the row.
// Angles are counter-clockwise on screen and normalised to [-π/2, π/2).
//
// Example:
//
//	gts, err := grasp.LoadCornell("pcd0100cpos.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pred := grasp.Grasp{Center: r2.Vec{X: 320, Y: 240}, Angle: 0.3, Length: 60, Width: 30}
//	ok := grasp.Match(pred, gts, grasp.DefaultThresholds())
package grasp

import (
	"github.com/born-ml/graspnet/internal/evaluation"
	"github.com/born-ml/graspnet/internal/grasp"
)

// Rectangle is an oriented grasp rectangle given by its four corners.
type Rectangle = grasp.Rectangle

// Rectangles is a set of rectangles, typically the annotations of a frame.
type Rectangles = grasp.Rectangles

// Grasp is a grasp in centre, angle, length and width form.
type Grasp = grasp.Grasp

// Params is the (x, y, θ, h, w) parameterisation of a rectangle.
type Params = grasp.Params

// Scale converts between annotation and image pixels.
type Scale = grasp.Scale

// Thresholds are the limits a predicted grasp must beat to count as a
// success.
type Thresholds = evaluation.Thresholds

// BoxToParams converts a rectangle into (x, y, θ, h, w) parameters.
func BoxToParams(r Rectangle) Params { return grasp.BoxToParams(r) }

// ParamsToBox converts parameters back into a rectangle.
func ParamsToBox(p Params) Rectangle { return grasp.ParamsToBox(p) }

// BoxesToParams converts flattened 8-value boxes, scaled by s.
func BoxesToParams(values []float64, s Scale) ([]Params, error) {
	return grasp.BoxesToParams(values, s)
}

// IOU returns the exact intersection over union of two rectangles.
func IOU(a, b Rectangle) float64 { return grasp.IOU(a, b) }

// AngleDiff returns the difference between two grasp angles in [0, π/2].
func AngleDiff(a, b float64) float64 { return grasp.AngleDiff(a, b) }

// LoadCornell reads a Cornell cpos annotation file.
func LoadCornell(path string) (Rectangles, error) { return grasp.LoadCornell(path) }

// DefaultThresholds returns IOU > 0.25 and an angle difference below 30°.
func DefaultThresholds() Thresholds { return evaluation.DefaultThresholds() }

// Match reports whether pred matches any of gts.
func Match(pred Grasp, gts Rectangles, th Thresholds) bool {
	return evaluation.Match(pred, gts, th)
}
