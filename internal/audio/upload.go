package audio

import (
	"bytes"
	"fmt"
	"io"

	"voicenotes/internal/domain"
)

// ReadUpload reads an uploaded file into memory, refusing to read past
// limit, and validates it. declaredSize is what the multipart header claims;
// it is checked first so oversize files fail before their body is read.
func ReadUpload(file io.Reader, filename, mimeType string, declaredSize, limit int64) (domain.UploadedAudio, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if declaredSize > limit {
		return domain.UploadedAudio{}, ErrTooLarge
	}

	sample := make([]byte, SniffLen)
	n, err := io.ReadFull(file, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return domain.UploadedAudio{}, fmt.Errorf("read audio sample: %w", err)
	}
	sample = sample[:n]

	format, err := Validate(Candidate{
		MIME:     mimeType,
		Filename: filename,
		Size:     declaredSize,
		Header:   sample,
	}, limit)
	if err != nil {
		return domain.UploadedAudio{}, err
	}

	data, err := readWithLimit(sample, file, limit)
	if err != nil {
		return domain.UploadedAudio{}, err
	}

	return domain.UploadedAudio{
		Data:     data,
		MIME:     mimeType,
		Filename: filename,
		Size:     int64(len(data)),
		Format:   format,
	}, nil
}

func readWithLimit(sample []byte, file io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(sample)

	// One extra byte tells "exactly at the limit" apart from "over it".
	remaining := limit - int64(len(sample)) + 1
	if remaining < 1 {
		return nil, ErrTooLarge
	}
	if _, err := io.Copy(&buf, io.LimitReader(file, remaining)); err != nil {
		return nil, fmt.Errorf("read audio content: %w", err)
	}
	if int64(buf.Len()) > limit {
		return nil, ErrTooLarge
	}

	return buf.Bytes(), nil
}
