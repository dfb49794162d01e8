package preset

import (
	"io"
	"log/slog"
	"time"
)

// Test TLE lines. The ISS and Starlink sets are near-circular LEO; the
// Molniya-type set is a 12-hour orbit with e=0.7.
const (
	issLine1      = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2      = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
	molniyaLine1  = "1 99999U 24001A   24100.50000000  .00000000  00000-0  00000-0 0  9990"
	molniyaLine2  = "2 99999  63.4000 100.0000 7000000 270.0000   0.0000  2.00600000    10"
)

var testEpoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testEntries() []Entry {
	return []Entry{
		{NORADID: 25544, Name: "ISS (ZARYA)", Epoch: testEpoch, Line1: issLine1, Line2: issLine2},
		{NORADID: 44713, Name: "STARLINK-1007", Epoch: testEpoch, Line1: starlinkLine1, Line2: starlinkLine2},
		{NORADID: 99999, Name: "MOLNIYA TEST", Epoch: testEpoch, Line1: molniyaLine1, Line2: molniyaLine2},
	}
}

func testTLEText() string {
	return encodeString(testEntries())
}

func encodeString(entries []Entry) string {
	return string(encode(entries))
}
