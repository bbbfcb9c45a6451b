package provider

import "testing"

func TestExtractOTP(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		min     int
		max     int
		want    string
		wantHit bool
	}{
		{
			name: "plain code",
			text: "STATUS_OK:483920", min: 4, max: 8,
			want: "483920", wantHit: true,
		},
		{
			name: "code inside sentence",
			text: "Your verification code is 1234. Do not share it.", min: 4, max: 8,
			want: "1234", wantHit: true,
		},
		{
			name: "no digits",
			text: "STATUS_WAIT_CODE", min: 4, max: 8,
			wantHit: false,
		},
		{
			name: "short run skipped",
			text: "id 12 then code 55678", min: 4, max: 8,
			want: "55678", wantHit: true,
		},
		{
			name: "long run skipped not truncated",
			text: "order 1234567890123 code 9876", min: 4, max: 8,
			want: "9876", wantHit: true,
		},
		{
			name: "run at end of string",
			text: "code:7777", min: 4, max: 8,
			want: "7777", wantHit: true,
		},
		{
			name: "only out-of-window runs",
			text: "ref 123 order 123456789012", min: 4, max: 8,
			wantHit: false,
		},
		{
			name: "first matching run wins",
			text: "a 4444 b 5555", min: 4, max: 8,
			want: "4444", wantHit: true,
		},
		{
			name: "defaults applied for zero min",
			text: "code 123456", min: 0, max: 0,
			want: "123456", wantHit: true,
		},
		{
			name: "exact max length",
			text: "code 12345678", min: 4, max: 8,
			want: "12345678", wantHit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := ExtractOTP(tt.text, tt.min, tt.max)
			if hit != tt.wantHit {
				t.Fatalf("ExtractOTP(%q) hit = %v, want %v", tt.text, hit, tt.wantHit)
			}
			if hit && got != tt.want {
				t.Fatalf("ExtractOTP(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
