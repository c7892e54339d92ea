package store

import (
	"testing"
	"time"
)

func TestFormatTokenNumber(t *testing.T) {
	day := time.Date(2025, 1, 17, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		code string
		seq  int64
		want string
	}{
		{"OPD", 7, "OPD202501170007"},
		{"opd", 7, "OPD202501170007"},
		{"DENTAL", 1, "DEN202501170001"},
		{"ER", 12, "ER202501170012"},
		{"OPD", 10000, "OPD2025011710000"},
	}

	for _, tt := range cases {
		if got := FormatTokenNumber(tt.code, day, tt.seq); got != tt.want {
			t.Fatalf("FormatTokenNumber(%q, %d)=%q, want %q", tt.code, tt.seq, got, tt.want)
		}
	}
}

func TestFormatAppointmentNumberMarker(t *testing.T) {
	day := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	got := FormatAppointmentNumber("OPD", day, 1)
	if got != "AOPD202501170001" {
		t.Fatalf("FormatAppointmentNumber=%q", got)
	}
	if got == FormatTokenNumber("OPD", day, 1) {
		t.Fatalf("appointment number must not collide with token number")
	}
}
