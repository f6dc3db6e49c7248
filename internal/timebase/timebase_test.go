package timebase_test

import (
	"testing"

	"cutplan/internal/timebase"
)

func TestNewRateRejectsNonPositive(t *testing.T) {
	cases := []struct {
		name     string
		num, den int64
	}{
		{"zero numerator", 0, 1},
		{"zero denominator", 30, 0},
		{"negative numerator", -30, 1},
		{"negative denominator", 30, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := timebase.NewRate(tc.num, tc.den); err == nil {
				t.Fatalf("expected error for %d/%d", tc.num, tc.den)
			}
		})
	}
	if _, err := timebase.NewRate(30000, 1001); err != nil {
		t.Fatalf("NewRate(30000,1001): %v", err)
	}
}

func TestConvertFloors(t *testing.T) {
	video, _ := timebase.NewRate(30, 1)
	audio, _ := timebase.NewRate(48000, 1)
	ntsc, _ := timebase.NewRate(30000, 1001)

	cases := []struct {
		name     string
		v        int64
		from, to timebase.Rate
		want     int64
	}{
		{"frame to sample", 30, video, audio, 48000},
		{"sample to frame truncates", 48001, audio, video, 30},
		{"sample just under frame", 47999, audio, video, 29},
		{"same rate identity", 123, video, video, 123},
		{"ntsc to samples", 30, ntsc, audio, 48048},
		{"zero", 0, video, audio, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := timebase.Convert(tc.v, tc.from, tc.to)
			if got != tc.want {
				t.Fatalf("Convert(%d, %s, %s) = %d, want %d", tc.v, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestConvertRepeatIsStable(t *testing.T) {
	video, _ := timebase.NewRate(30, 1)
	audio, _ := timebase.NewRate(48000, 1)

	// One down-conversion may lose granularity, but converting the result
	// again must not drift further.
	v := int64(48001)
	frame := timebase.Convert(v, audio, video)
	back := timebase.Convert(frame, video, audio)
	frame2 := timebase.Convert(back, audio, video)
	if frame != frame2 {
		t.Fatalf("conversion drifted: %d then %d", frame, frame2)
	}
}

func TestSnapToFrameIdempotent(t *testing.T) {
	audio, _ := timebase.NewRate(48000, 1)
	video, _ := timebase.NewRate(30, 1)

	snapped := timebase.SnapToFrame(48013, audio, video)
	if snapped != 48000 {
		t.Fatalf("SnapToFrame(48013) = %d, want 48000", snapped)
	}
	if again := timebase.SnapToFrame(snapped, audio, video); again != snapped {
		t.Fatalf("snap not idempotent: %d then %d", snapped, again)
	}
	// 48700 sits below the midpoint of the 1600-sample frame, 48800 on it.
	if got := timebase.SnapToFrame(48700, audio, video); got != 48000 {
		t.Fatalf("SnapToFrame(48700) = %d, want 48000", got)
	}
	if got := timebase.SnapToFrame(48800, audio, video); got != 49600 {
		t.Fatalf("SnapToFrame(48800) = %d, want 49600", got)
	}
}

func TestSnapToFrameSameRateIsIdentity(t *testing.T) {
	video, _ := timebase.NewRate(30, 1)
	if got := timebase.SnapToFrame(77, video, video); got != 77 {
		t.Fatalf("SnapToFrame same-rate = %d, want 77", got)
	}
}

func TestFormatTimecode(t *testing.T) {
	video, _ := timebase.NewRate(30, 1)
	cases := []struct {
		v    int64
		want string
	}{
		{0, "00:00:00:00"},
		{29, "00:00:00:29"},
		{30, "00:00:01:00"},
		{30*3600 + 30*60 + 30 + 15, "01:01:01:15"},
	}
	for _, tc := range cases {
		if got := timebase.FormatTimecode(tc.v, video); got != tc.want {
			t.Fatalf("FormatTimecode(%d) = %q, want %q", tc.v, got, tc.want)
		}
	}
}
