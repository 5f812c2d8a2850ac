// Package artifact persists a job's output: the episode directory, one audio
// file per work item and the metadata.json summary.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dgnsrekt/voxcast/utils"
)

// MetadataFile is the name of the job summary written to each episode dir.
const MetadataFile = "metadata.json"

const (
	dateLayout   = "2006-01-02"
	maxDirSuffix = 1000
)

// ErrDirExhausted is returned when no free episode directory name is left.
var ErrDirExhausted = errors.New("no free episode directory name")

// Writer writes job artifacts below a root output directory. Nothing is
// retried; errors are returned to the caller.
type Writer struct {
	root   string
	logger *log.Logger
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{root: utils.ExpandPath(root), logger: logger}
}

// CreateEpisodeDir creates a fresh directory named
// <sanitized-episode>_<YYYY-MM-DD> under the root. If the name is taken,
// _2, _3, ... are appended. The absolute path is returned.
func (w *Writer) CreateEpisodeDir(episode string, now time.Time) (string, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	base := SanitizeName(episode) + "_" + now.Format(dateLayout)
	for n := 1; n <= maxDirSuffix; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		dir := filepath.Join(root, name)

		err := os.Mkdir(dir, 0o755)
		if err == nil {
			w.logger.Debug("Created episode directory", "dir", dir)
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("creating episode dir: %w", err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDirExhausted, base)
}

// WriteAudio writes data to dir/filename, replacing any existing file.
func (w *Writer) WriteAudio(dir, filename string, data []byte) (string, error) {
	path := filepath.Join(dir, filepath.Base(filename))
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing audio %s: %w", filename, err)
	}
	return path, nil
}

// WriteMetadata writes md as indented JSON to dir/metadata.json.
func (w *Writer) WriteMetadata(dir string, md Metadata) (string, error) {
	data, err := json.MarshalIndent(md.normalized(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, MetadataFile)
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	return path, nil
}

// ReadMetadata loads dir/metadata.json.
func ReadMetadata(dir string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return md, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("decoding metadata: %w", err)
	}
	return md, nil
}

// SanitizeName folds an episode title into a file-system safe name:
// diacritics are removed and unsafe runs become underscores.
func SanitizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	if s := utils.SafeName(folded); s != "" {
		return s
	}
	return "episode"
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
