package train

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ScalarsFile is the name of the metric log inside a run's log directory.
const ScalarsFile = "scalars.jsonl"

// Scalar is one logged value.
type Scalar struct {
	Run   string    `json:"run"`
	Tag   string    `json:"tag"`
	Step  int       `json:"step"`
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// ScalarWriter appends scalars as JSON lines. It is safe for concurrent use.
type ScalarWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	run string
	now func() time.Time
}

// NewScalarWriter opens dir/scalars.jsonl for appending, creating dir.
func NewScalarWriter(dir, run string) (*ScalarWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}
	//nolint:gosec // G304: log dir comes from configuration
	f, err := os.OpenFile(filepath.Join(dir, ScalarsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open scalar log")
	}
	return &ScalarWriter{f: f, enc: json.NewEncoder(f), run: run, now: time.Now}, nil
}

// Add records value under tag at step.
func (w *ScalarWriter) Add(tag string, value float64, step int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Scalar{Run: w.run, Tag: tag, Step: step, Value: value, Time: w.now().UTC()}
	return errors.Wrapf(w.enc.Encode(s), "write scalar %s", tag)
}

// Close closes the underlying file.
func (w *ScalarWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReadScalars reads every scalar in a JSON-lines log.
func ReadScalars(path string) ([]Scalar, error) {
	//nolint:gosec // G304: path is user input
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scalar log")
	}
	defer func() { _ = f.Close() }()

	var out []Scalar
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var s Scalar
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		out = append(out, s)
	}
	return out, errors.Wrap(sc.Err(), "read scalar log")
}
