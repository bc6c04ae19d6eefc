// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package models

import "fmt"

// Shape is one of the puzzle pieces a player can select.
type Shape int

const (
	ShapeCube Shape = iota
	ShapeSphere
	ShapeCapsule
)

// AllShapes lists every shape in declaration order.
var AllShapes = []Shape{ShapeCube, ShapeSphere, ShapeCapsule}

var shapeNames = [...]string{"Cube", "Sphere", "Capsule"}

// String returns the object id used for the shape in captured behaviours.
func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape resolves an object id back to a shape.
func ParseShape(name string) (Shape, error) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}
