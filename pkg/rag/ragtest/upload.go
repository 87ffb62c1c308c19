package ragtest

import (
	"bytes"
	"errors"
	"io"

	"rag-chatbot-be/pkg/rag"
)

// FileUpload serves data as an in-memory upload.
func FileUpload(name string, data []byte) rag.Upload {
	return rag.Upload{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

var ErrOpened = errors.New("upload opened")

// UnopenedUpload claims size bytes but fails if anything tries to read it.
func UnopenedUpload(name string, size int64, opened *bool) rag.Upload {
	return rag.Upload{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			if opened != nil {
				*opened = true
			}
			return nil, ErrOpened
		},
	}
}
