// Package audio decides whether an uploaded blob is an audio container the
// STT provider accepts.
package audio

import (
	"bytes"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxBytes is the upload ceiling used when none is configured.
	DefaultMaxBytes int64 = 100 * 1024 * 1024
	// SniffLen is how many leading bytes Validate looks at.
	SniffLen = 64
)

var (
	ErrTooLarge        = errors.New("audio file exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported audio type")
)

const (
	FormatWAV     = "wav"
	FormatMP3     = "mp3"
	FormatAAC     = "aac"
	FormatOgg     = "ogg"
	FormatFLAC    = "flac"
	FormatWebM    = "webm"
	FormatAMR     = "amr"
	FormatMP4     = "mp4"
	FormatUnknown = "unknown"
)

var allowedMIMEs = map[string]string{
	"audio/wav":      FormatWAV,
	"audio/x-wav":    FormatWAV,
	"audio/wave":     FormatWAV,
	"audio/vnd.wave": FormatWAV,
	"audio/mpeg":     FormatMP3,
	"audio/mp3":      FormatMP3,
	"audio/mp4":      FormatMP4,
	"audio/x-m4a":    FormatMP4,
	"audio/m4a":      FormatMP4,
	"audio/aac":      FormatAAC,
	"audio/x-aac":    FormatAAC,
	"audio/aacp":     FormatAAC,
	"audio/3gpp":     FormatMP4,
	"audio/3gpp2":    FormatMP4,
	"audio/ogg":      FormatOgg,
	"audio/opus":     FormatOgg,
	"audio/webm":     FormatWebM,
	"audio/flac":     FormatFLAC,
	"audio/x-flac":   FormatFLAC,
	"audio/amr":      FormatAMR,
	"audio/amr-wb":   FormatAMR,
	"video/mp4":      FormatMP4,
	"video/3gpp":     FormatMP4,
	"video/webm":     FormatWebM,
}

var allowedExtensions = map[string]string{
	".m4a":  FormatMP4,
	".mp3":  FormatMP3,
	".wav":  FormatWAV,
	".aac":  FormatAAC,
	".m4r":  FormatMP4,
	".3gp":  FormatMP4,
	".3g2":  FormatMP4,
	".ogg":  FormatOgg,
	".oga":  FormatOgg,
	".opus": FormatOgg,
	".webm": FormatWebM,
	".flac": FormatFLAC,
	".amr":  FormatAMR,
	".mp4":  FormatMP4,
}

// Candidate describes a file before it is accepted.
type Candidate struct {
	MIME     string
	Filename string
	Size     int64
	Header   []byte
}

// Validate accepts a candidate by declared MIME type, then by extension, and
// finally by sniffing its leading bytes. limit <= 0 means DefaultMaxBytes.
func Validate(c Candidate, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if c.Size > limit {
		return "", ErrTooLarge
	}

	if format, ok := allowedMIMEs[normalizeMIME(c.MIME)]; ok {
		return refine(format, c.Header), nil
	}
	if format, ok := allowedExtensions[Extension(c.Filename)]; ok {
		return refine(format, c.Header), nil
	}
	if format := Sniff(c.Header); format != FormatUnknown {
		return format, nil
	}

	return "", ErrUnsupportedType
}

// HasAllowedExtension reports whether name ends in a known audio extension.
func HasAllowedExtension(name string) bool {
	_, ok := allowedExtensions[Extension(name)]
	return ok
}

// Extension returns the lower-cased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimSpace(filepath.Ext(name)))
}

// refine prefers what the bytes say over what the metadata claims.
func refine(declared string, header []byte) string {
	if sniffed := Sniff(header); sniffed != FormatUnknown {
		return sniffed
	}
	return declared
}

func normalizeMIME(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(mediaType)
	}
	return strings.ToLower(value)
}

type signature struct {
	format string
	match  func([]byte) bool
}

// Matchers are mutually exclusive, so their order does not matter.
var signatures = []signature{
	{FormatWAV, isWAV},
	{FormatMP3, isMP3},
	{FormatAAC, isADTS},
	{FormatOgg, hasPrefix("OggS")},
	{FormatFLAC, hasPrefix("fLaC")},
	{FormatWebM, hasPrefix("\x1a\x45\xdf\xa3")},
	{FormatAMR, hasPrefix("#!AMR")},
	{FormatMP4, isISOBMFF},
}

// Sniff inspects header and returns the container it recognises, or
// FormatUnknown. header is never modified.
func Sniff(header []byte) string {
	for _, sig := range signatures {
		if sig.match(header) {
			return sig.format
		}
	}
	return FormatUnknown
}

func hasPrefix(magic string) func([]byte) bool {
	return func(b []byte) bool {
		return bytes.HasPrefix(b, []byte(magic))
	}
}

func isWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

func isMP3(b []byte) bool {
	if bytes.HasPrefix(b, []byte("ID3")) {
		return true
	}
	// MPEG audio frame sync: 11 set bits and a non-reserved layer.
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && (b[1]>>1)&0x03 != 0
}

func isADTS(b []byte) bool {
	// 12 sync bits, layer always 00.
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

var isoBrands = map[string]struct{}{
	"isom": {}, "iso2": {}, "iso4": {}, "iso5": {}, "iso6": {},
	"mp41": {}, "mp42": {}, "mp71": {}, "avc1": {}, "dash": {},
	"M4A ": {}, "M4B ": {}, "M4P ": {}, "M4V ": {}, "F4A ": {},
	"3gp4": {}, "3gp5": {}, "3gp6": {}, "3gp7": {}, "3gs7": {},
	"3ge6": {}, "3ge7": {}, "3gg6": {}, "3g2a": {}, "3g2b": {}, "3g2c": {},
	"qt  ": {}, "MSNV": {},
}

func isISOBMFF(b []byte) bool {
	window := b
	if len(window) > 16 {
		window = window[:16]
	}
	idx := bytes.Index(window, []byte("ftyp"))
	if idx < 0 || len(b) < idx+8 {
		return false
	}
	brand := string(b[idx+4 : idx+8])
	if _, ok := isoBrands[brand]; ok {
		return true
	}
	return strings.HasPrefix(brand, "3gp") || strings.HasPrefix(brand, "3g2")
}
