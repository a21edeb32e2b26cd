package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBasicCloudOrderAndMetaData(t *testing.T) {
	cloud := NewWithPrealloc(3)
	test.That(t, cloud.Size(), test.ShouldEqual, 0)

	cloud.Append(NewVector(1, 5, -2), NewBasicData())
	cloud.Append(NewVector(-3, 2, 7), NewIntensityData(9))
	cloud.Append(NewVector(0, 0, 0), NewBasicData())
	test.That(t, cloud.Size(), test.ShouldEqual, 3)

	p, d := cloud.At(1)
	test.That(t, p.X, test.ShouldEqual, -3)
	test.That(t, d.HasIntensity(), test.ShouldBeTrue)
	test.That(t, d.Intensity(), test.ShouldEqual, 9.0)

	meta := cloud.MetaData()
	test.That(t, meta.HasIntensity, test.ShouldBeTrue)
	test.That(t, meta.HasColor, test.ShouldBeFalse)
	test.That(t, meta.MinX, test.ShouldEqual, -3.0)
	test.That(t, meta.MaxX, test.ShouldEqual, 1.0)
	test.That(t, meta.MinZ, test.ShouldEqual, -2.0)
	test.That(t, meta.MaxZ, test.ShouldEqual, 7.0)
}

func TestIterateStopsEarly(t *testing.T) {
	cloud := New()
	for i := 0; i < 5; i++ {
		cloud.Append(NewVector(float64(i), 0, 0), NewBasicData())
	}
	seen := 0
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		seen++
		return seen < 2
	})
	test.That(t, seen, test.ShouldEqual, 2)
}
