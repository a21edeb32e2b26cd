package simage

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestCheckSync(t *testing.T) {
	base := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	pair := &FramePair{
		Left:          NewGray(4, 4),
		Right:         NewGray(4, 4),
		CapturedLeft:  base,
		CapturedRight: base.Add(5 * time.Millisecond),
	}
	test.That(t, pair.CheckSync(10*time.Millisecond), test.ShouldBeNil)
	test.That(t, pair.CheckSync(5*time.Millisecond), test.ShouldBeNil)

	err := pair.CheckSync(4 * time.Millisecond)
	test.That(t, err, test.ShouldNotBeNil)
	var syncErr *SyncToleranceError
	test.That(t, errors.As(err, &syncErr), test.ShouldBeTrue)
	test.That(t, syncErr.Skew, test.ShouldEqual, 5*time.Millisecond)
	test.That(t, syncErr.Tolerance, test.ShouldEqual, 4*time.Millisecond)

	// skew is symmetric
	pair.CapturedLeft, pair.CapturedRight = pair.CapturedRight, pair.CapturedLeft
	err = pair.CheckSync(4 * time.Millisecond)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCheckDimensions(t *testing.T) {
	pair := &FramePair{Left: NewGray(8, 6), Right: NewGray(8, 6)}
	test.That(t, pair.CheckDimensions(8, 6), test.ShouldBeNil)

	err := pair.CheckDimensions(8, 7)
	test.That(t, err, test.ShouldNotBeNil)
	var sizeErr *SizeMismatchError
	test.That(t, errors.As(err, &sizeErr), test.ShouldBeTrue)
	test.That(t, sizeErr.GotHeight, test.ShouldEqual, 6)
	test.That(t, sizeErr.WantHeight, test.ShouldEqual, 7)

	pair.Right = NewGray(4, 6)
	test.That(t, pair.CheckDimensions(8, 6), test.ShouldNotBeNil)

	pair.Right = nil
	test.That(t, pair.CheckDimensions(8, 6), test.ShouldNotBeNil)
}
