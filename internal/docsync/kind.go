package docsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

type ContentKind string

const (
	KindText ContentKind = "text"
	KindBlob ContentKind = "blob"
	KindJSON ContentKind = "json"
)

var blobExtensions = map[string]struct{}{
	".png":  {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".ico": {},
	".pdf":  {},
	".xls":  {}, ".xlsx": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {},
	".zip":  {}, ".tar": {}, ".gz": {}, ".tgz": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {},
	".mp3":  {}, ".mp4": {}, ".wav": {}, ".ogg": {},
	".bin":  {}, ".exe": {}, ".so": {}, ".dylib": {},
}

// DetectKind infers how a payload should be decoded from the file extension.
// Image, pdf and office-style formats are binary; JSON gets a display-oriented
// special case; everything else is treated as text.
func DetectKind(remotePath string) ContentKind {
	ext := strings.ToLower(path.Ext(remotePath))
	if ext == ".json" {
		return KindJSON
	}
	if _, ok := blobExtensions[ext]; ok {
		return KindBlob
	}
	return KindText
}

type Payload struct {
	Kind ContentKind
	Text string
	Data []byte
}

func decodePayload(remotePath string, raw []byte) (Payload, error) {
	kind := DetectKind(remotePath)
	switch kind {
	case KindBlob:
		return Payload{Kind: KindBlob, Data: raw}, nil
	case KindJSON:
		if !json.Valid(raw) {
			return Payload{}, fmt.Errorf("%w: %s is not valid JSON", ErrDecode, remotePath)
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return Payload{Kind: KindJSON, Text: pretty.String()}, nil
	default:
		if !utf8.Valid(raw) {
			return Payload{}, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrDecode, remotePath)
		}
		return Payload{Kind: KindText, Text: string(raw)}, nil
	}
}
