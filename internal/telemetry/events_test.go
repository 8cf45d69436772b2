package telemetry

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseSnapshot(t *testing.T) {

	Convey("A well formed payload should decode every series", t, func() {
		snap, err := ParseSnapshot([]byte(`{"cpu": [[1697712000000, 45.2], [1697712001000, 46.1]], "mem": [[1, 2]]}`))
		So(err, ShouldBeNil)
		So(snap, ShouldHaveLength, 2)
		So(snap["cpu"], ShouldResemble, []Point{{T: 1697712000000, V: 45.2}, {T: 1697712001000, V: 46.1}})
		So(snap["mem"], ShouldResemble, []Point{{T: 1, V: 2}})
		So(snap.Points(), ShouldEqual, 3)
	})

	Convey("Payloads that are not objects should be rejected", t, func() {
		for _, raw := range []string{`[1,2]`, `"cpu"`, `nope`, ``} {
			_, err := ParseSnapshot([]byte(raw))
			So(errors.Is(err, ErrNotObject), ShouldBeTrue)
		}
	})

	Convey("An empty object should be rejected", t, func() {
		_, err := ParseSnapshot([]byte(`{}`))
		So(errors.Is(err, ErrEmpty), ShouldBeTrue)
	})

	Convey("Only the first key decides whether the payload is accepted", t, func() {
		_, err := ParseSnapshot([]byte(`{"cpu": 12, "mem": [[1, 2]]}`))
		So(errors.Is(err, ErrFirstNotArray), ShouldBeTrue)

		snap, err := ParseSnapshot([]byte(`{"cpu": [[1, 2]], "mem": "broken"}`))
		So(err, ShouldBeNil)
		So(snap, ShouldHaveLength, 1)
		So(snap["cpu"], ShouldHaveLength, 1)
	})

	Convey("Malformed points in the first series should fail", t, func() {
		_, err := ParseSnapshot([]byte(`{"cpu": [[1]]}`))
		So(err, ShouldNotBeNil)

		_, err = ParseSnapshot([]byte(`{"cpu": [["a", 1]]}`))
		So(err, ShouldNotBeNil)
	})

	Convey("An empty first series is still an array", t, func() {
		snap, err := ParseSnapshot([]byte(`{"cpu": []}`))
		So(err, ShouldBeNil)
		So(snap["cpu"], ShouldBeEmpty)
	})
}

func TestPointJSON(t *testing.T) {

	Convey("Points should encode as pairs", t, func() {
		b, err := json.Marshal(Snapshot{"cpu": {{T: 100, V: 50.5}}})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"cpu":[[100,50.5]]}`)

		snap, err := ParseSnapshot(b)
		So(err, ShouldBeNil)
		So(snap["cpu"][0].Time().UnixMilli(), ShouldEqual, 100)
	})
	Convey("Trailing elements of any type should be ignored", t, func() {
		snap, err := ParseSnapshot([]byte(`{"cpu": [[1, 2, "x"], [3, 4, null, {}]]}`))
		So(err, ShouldBeNil)
		So(snap["cpu"], ShouldResemble, []Point{{T: 1, V: 2}, {T: 3, V: 4}})
	})

	Convey("Timestamps beyond float64 precision should decode exactly", t, func() {
		var p Point
		So(json.Unmarshal([]byte(`[9007199254740993, 1.5]`), &p), ShouldBeNil)
		So(p.T, ShouldEqual, int64(9007199254740993))
		So(p.V, ShouldEqual, 1.5)
	})

	Convey("Fractional timestamps should truncate to the millisecond", t, func() {
		var p Point
		So(json.Unmarshal([]byte(`[1700000000000.9, 2]`), &p), ShouldBeNil)
		So(p.T, ShouldEqual, int64(1700000000000))
	})

	Convey("A non-numeric value should fail", t, func() {
		var p Point
		So(json.Unmarshal([]byte(`[1, "x"]`), &p), ShouldNotBeNil)
		So(json.Unmarshal([]byte(`[null, 1]`), &p), ShouldNotBeNil)
	})
}
