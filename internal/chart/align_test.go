package chart

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/large-farva/livechart/internal/series"
	"github.com/large-farva/livechart/internal/telemetry"
)

func TestAlign(t *testing.T) {

	Convey("Disjoint series share one axis with gaps marked missing", t, func() {
		a := Align(series.View{
			{Name: "a", Points: []telemetry.Point{{T: 1, V: 10}}},
			{Name: "b", Points: []telemetry.Point{{T: 2, V: 20}}},
		})
		So(a.Axis, ShouldResemble, []int64{1, 2})
		So(a.Names, ShouldResemble, []string{"a", "b"})
		So(a.Values[0][0], ShouldEqual, 10)
		So(IsMissing(a.Values[0][1]), ShouldBeTrue)
		So(IsMissing(a.Values[1][0]), ShouldBeTrue)
		So(a.Values[1][1], ShouldEqual, 20)
	})

	Convey("Unordered input is sorted onto an ascending axis", t, func() {
		a := Align(series.View{
			{Name: "cpu", Points: []telemetry.Point{{T: 300, V: 3}, {T: 100, V: 1}, {T: 200, V: 2}}},
			{Name: "mem", Points: []telemetry.Point{{T: 200, V: 20}}},
		})
		So(a.Len(), ShouldEqual, 3)
		So(a.Axis, ShouldResemble, []int64{100, 200, 300})
		So(a.Values[0], ShouldResemble, []float64{1, 2, 3})
		So(a.Values[1][1], ShouldEqual, 20)
	})

	Convey("An empty view aligns to nothing", t, func() {
		a := Align(nil)
		So(a.Axis, ShouldBeEmpty)
		So(a.Values, ShouldBeEmpty)
		_, _, ok := a.Bounds()
		So(ok, ShouldBeFalse)
	})
}

func TestAlignedHelpers(t *testing.T) {

	a := Aligned{
		Axis:  []int64{1, 2, 3, 4},
		Names: []string{"a", "b", "c"},
		Values: [][]float64{
			{Missing, 5, Missing, 7},
			{1, Missing, Missing, Missing},
			{Missing, Missing, Missing, Missing},
		},
	}

	Convey("ForwardFilled closes every gap", t, func() {
		f := a.ForwardFilled()
		So(f[0], ShouldResemble, []float64{5, 5, 5, 7})
		So(f[1], ShouldResemble, []float64{1, 1, 1, 1})
		So(f[2], ShouldResemble, []float64{0, 0, 0, 0})
		So(math.IsNaN(a.Values[0][0]), ShouldBeTrue)
	})

	Convey("Bounds and Latest skip missing values", t, func() {
		lo, hi, ok := a.Bounds()
		So(ok, ShouldBeTrue)
		So(lo, ShouldEqual, 1)
		So(hi, ShouldEqual, 7)

		v, ok := a.Latest(0)
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 7)
		_, ok = a.Latest(2)
		So(ok, ShouldBeFalse)
		_, ok = a.Latest(9)
		So(ok, ShouldBeFalse)
	})
}
