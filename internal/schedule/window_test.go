package schedule

import (
	"testing"
	"time"
)

func TestParseWindows(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Window
		wantErr bool
	}{
		{
			name:  "three windows",
			input: "5-9, 11-15, 17-22",
			want:  []Window{{5, 9}, {11, 15}, {17, 22}},
		},
		{
			name:  "single window",
			input: "8-20",
			want:  []Window{{8, 20}},
		},
		{
			name:  "no spaces",
			input: "5-9,11-15",
			want:  []Window{{5, 9}, {11, 15}},
		},
		{
			name:  "extra whitespace",
			input: "  5 - 9 ,  11-15  ",
			want:  []Window{{5, 9}, {11, 15}},
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "blank string",
			input: "   ",
			want:  nil,
		},
		{
			// End before start passes through uninterpreted.
			name:  "inverted range preserved",
			input: "22-2",
			want:  []Window{{22, 2}},
		},
		{
			name:    "missing dash",
			input:   "59",
			wantErr: true,
		},
		{
			name:    "non-numeric hour",
			input:   "five-nine",
			wantErr: true,
		},
		{
			name:    "one bad segment fails the whole string",
			input:   "5-9, nonsense, 17-22",
			wantErr: true,
		},
		{
			name:    "too many dashes",
			input:   "5-9-12",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindows(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseWindows(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWindows(%q) unexpected error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseWindows(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseWindows(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseWindowsPreservesOrder(t *testing.T) {
	got, err := ParseWindows("17-22, 5-9, 11-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Window{{17, 22}, {5, 9}, {11, 15}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMidpointHour(t *testing.T) {
	tests := []struct {
		w    Window
		want int
	}{
		{Window{5, 9}, 7},
		{Window{11, 15}, 13},
		{Window{17, 22}, 19}, // (17+22)/2 truncates
		{Window{8, 20}, 14},
		{Window{0, 0}, 0},
	}
	for _, tt := range tests {
		if got := tt.w.MidpointHour(); got != tt.want {
			t.Errorf("Window%v.MidpointHour() = %d, want %d", tt.w, got, tt.want)
		}
	}
}

func TestScheduledTime(t *testing.T) {
	day := time.Date(2025, 3, 10, 16, 45, 12, 0, time.UTC)
	got := Window{8, 20}.ScheduledTime(day)
	want := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ScheduledTime = %v, want %v", got, want)
	}
}

func TestContainsHour(t *testing.T) {
	w := Window{5, 9}
	for _, h := range []int{5, 6, 7, 8, 9} {
		if !w.ContainsHour(h) {
			t.Errorf("Window%v should contain hour %d", w, h)
		}
	}
	for _, h := range []int{4, 10, 0, 23} {
		if w.ContainsHour(h) {
			t.Errorf("Window%v should not contain hour %d", w, h)
		}
	}
}
