package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegToRad(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, DegToRad(-45), test.ShouldAlmostEqual, -math.Pi/4)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(300, 90, 270), test.ShouldEqual, 270.0)
	test.That(t, Clamp(-1000, -180, 180), test.ShouldEqual, -180.0)
	test.That(t, Clamp(12.5, 0, 20), test.ShouldEqual, 12.5)
}
