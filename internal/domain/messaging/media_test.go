package messaging

import "testing"

func TestMediaKind(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/x/photo.JPG", MediaImage},
		{"https://cdn.example.com/voice.ogg?token=abc", MediaAudio},
		{"https://cdn.example.com/clip.mp4", MediaVideo},
		{"https://cdn.example.com/exam.pdf", MediaPDF},
		{"https://cdn.example.com/report.docx", MediaDoc},
		{"https://cdn.example.com/archive.zip", MediaUnknown},
		{"https://cdn.example.com/no-extension", MediaUnknown},
		{"", MediaUnknown},
	}
	for _, tc := range cases {
		if got := MediaKind(tc.url); got != tc.want {
			t.Errorf("MediaKind(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}
