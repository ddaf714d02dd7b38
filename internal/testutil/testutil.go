// Package testutil provides shared test utilities and fixtures.
//
// Geometry round trips go through binary32 storage, so most comparisons in
// this module are approximate; the helpers here centralise the tolerance.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Float32RelTolerance is the relative error a binary32 round trip may add.
const Float32RelTolerance = 1e-6

// Float32AbsTolerance absorbs error on values near zero.
const Float32AbsTolerance = 1e-7

// ApproxFloats compares float32 and float64 values within the binary32
// round-trip tolerance.
func ApproxFloats() cmp.Option {
	return cmpopts.EquateApprox(Float32RelTolerance, Float32AbsTolerance)
}

// AssertApproxEqual fails the test when want and got differ beyond the
// binary32 tolerance. Extra options are passed to cmp.Diff.
func AssertApproxEqual(t testing.TB, want, got interface{}, opts ...cmp.Option) {
	t.Helper()
	opts = append([]cmp.Option{ApproxFloats()}, opts...)
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
