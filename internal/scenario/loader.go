package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"api-harness/internal/observability"
)

const (
	LoginFile   = "test_login"
	ProductFile = "test_product"
)

var ErrDataFileNotFound = errors.New("data file not found")

// Loader reads scenario files from a single data directory.
type Loader struct {
	dir    string
	logger *observability.Logger
}

func NewLoader(dir string, logger *observability.Logger) *Loader {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Loader{dir: dir, logger: logger}
}

// Path resolves name inside the data directory, appending .yaml when absent.
func (l *Loader) Path(name string) (string, error) {
	if !strings.HasSuffix(name, ".yaml") {
		name += ".yaml"
	}
	path, err := filepath.Abs(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("resolve data file: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDataFileNotFound, path)
		}
		return "", fmt.Errorf("stat data file %s: %w", path, err)
	}
	return path, nil
}

// entries returns the sequence under key. An empty file yields no entries.
func (l *Loader) entries(name, key string) ([]yaml.Node, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	var doc map[string][]yaml.Node
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			l.logger.Info("scenario_file_empty", map[string]any{"path": path})
			return nil, nil
		}
		l.logger.Error("scenario_file_parse_failed", map[string]any{"path": path, "error": err.Error()})
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}

	l.logger.Info("scenario_file_loaded", map[string]any{"path": path, "entries": len(doc[key])})
	return doc[key], nil
}

func (l *Loader) LoginCases() ([]LoginCase, error) {
	nodes, err := l.entries(LoginFile, "login_cases")
	if err != nil {
		return nil, err
	}

	cases := make([]LoginCase, 0, len(nodes))
	for i := range nodes {
		if nodes[i].Kind != yaml.MappingNode {
			l.logger.Warn("scenario_case_skipped", map[string]any{"suite": "login", "index": i + 1, "reason": "not a mapping"})
			continue
		}
		c := defaultLoginCase(i + 1)
		if err := nodes[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("decode login case %d: %w", i+1, err)
		}
		c.applyBoundaries()
		cases = append(cases, c)
	}

	l.logger.Info("scenario_cases_prepared", map[string]any{"suite": "login", "cases": len(cases)})
	return cases, nil
}

func (l *Loader) ProductCases() ([]ProductCase, error) {
	nodes, err := l.entries(ProductFile, "product_cases")
	if err != nil {
		return nil, err
	}

	cases := make([]ProductCase, 0, len(nodes))
	for i := range nodes {
		if nodes[i].Kind != yaml.MappingNode {
			l.logger.Warn("scenario_case_skipped", map[string]any{"suite": "product", "index": i + 1, "reason": "not a mapping"})
			continue
		}
		c := defaultProductCase(i + 1)
		if err := nodes[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("decode product case %d: %w", i+1, err)
		}
		c.applyBoundaries()
		cases = append(cases, c)
	}

	l.logger.Info("scenario_cases_prepared", map[string]any{"suite": "product", "cases": len(cases)})
	return cases, nil
}
