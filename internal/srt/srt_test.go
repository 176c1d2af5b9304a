package srt

import (
	"bytes"
	"regexp"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{3661.25, "01:01:01,250"},
		{59.999, "00:00:59,999"},
		{3600, "01:00:00,000"},
		{360000.5, "100:00:00,500"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.seconds); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatTimestampShape(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{2,}:\d{2}:\d{2},\d{3}$`)
	for _, seconds := range []float64{0, 0.001, 12.34, 599.9, 86399.999} {
		got := FormatTimestamp(seconds)
		if !pattern.MatchString(got) {
			t.Errorf("FormatTimestamp(%v) = %q does not match timestamp shape", seconds, got)
		}
	}
}

func TestFormatTimestampTruncates(t *testing.T) {
	// 丸めではなく切り捨てであること
	if got := FormatTimestamp(1.9999); got != "00:00:01,999" {
		t.Errorf("FormatTimestamp(1.9999) = %q, want 00:00:01,999", got)
	}
}

func TestWrite(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 1.5, Text: "Hi"},
		{Start: 1.5, End: 3.0, Text: "There"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, segments); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:01,500\nHi\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nThere\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestWriteTrimsText(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []Segment{{Start: 0, End: 1, Text: "  padded  "}}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,000\npadded\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output, got %q", buf.String())
	}
}

func TestWriteIdempotent(t *testing.T) {
	segments := []Segment{
		{Start: 0.25, End: 2.75, Text: "first"},
		{Start: 2.75, End: 4.0, Text: "second"},
	}

	var first, second bytes.Buffer
	if err := Write(&first, segments); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := Write(&second, segments); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("serializing the same segments twice produced different bytes")
	}
}
