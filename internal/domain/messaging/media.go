package messaging

import (
	"net/url"
	"path"
	"strings"
)

// Media kinds detected from an attachment URL.
const (
	MediaImage   = "image"
	MediaAudio   = "audio"
	MediaVideo   = "video"
	MediaPDF     = "pdf"
	MediaDoc     = "doc"
	MediaUnknown = "unknown"
)

var mediaByExt = map[string]string{
	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage,
	".gif": MediaImage, ".webp": MediaImage,

	".mp3": MediaAudio, ".ogg": MediaAudio, ".oga": MediaAudio,
	".wav": MediaAudio, ".m4a": MediaAudio, ".opus": MediaAudio,

	".mp4": MediaVideo, ".mov": MediaVideo, ".avi": MediaVideo,
	".webm": MediaVideo, ".mkv": MediaVideo,

	".pdf": MediaPDF,

	".doc": MediaDoc, ".docx": MediaDoc, ".odt": MediaDoc, ".txt": MediaDoc,
	".xls": MediaDoc, ".xlsx": MediaDoc, ".csv": MediaDoc,
}

// MediaKind sniffs the media kind from a URL's file extension. Query strings
// and fragments are ignored; unrecognized or missing extensions resolve to
// MediaUnknown.
func MediaKind(rawURL string) string {
	if rawURL == "" {
		return MediaUnknown
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if kind, ok := mediaByExt[ext]; ok {
		return kind
	}
	return MediaUnknown
}
