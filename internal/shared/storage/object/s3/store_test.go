package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "TRX-2024-00001/scan.pdf", want: "TRX-2024-00001/scan.pdf"},
		{name: "simple prefix", prefix: "root", key: "TRX-2024-00001/scan.pdf", want: "root/TRX-2024-00001/scan.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "TRX-2024-00001/scan.pdf", want: "root/TRX-2024-00001/scan.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/TRX-2024-00001/scan.pdf", want: "root/TRX-2024-00001/scan.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "TRX-2024-00001/scan.pdf", want: "root/sub/TRX-2024-00001/scan.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
