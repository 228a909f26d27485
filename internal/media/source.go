package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hszk-dev/vidcache/internal/domain/model"
)

// Materialize writes the content of file to a temporary file in dir so it can be
// handed to a decoder. The returned release function removes the temporary file
// and must be called once decoding is finished, on success and failure alike.
func Materialize(dir string, file model.SourceFile) (string, func(), error) {
	if len(file.Data) == 0 {
		return "", nil, ErrNoContent
	}

	tmp, err := os.CreateTemp(dir, "vidcache-*"+filepath.Ext(file.Name))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	release := func() { _ = os.Remove(path) }

	if _, err := tmp.Write(file.Data); err != nil {
		_ = tmp.Close()
		release()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return path, release, nil
}
