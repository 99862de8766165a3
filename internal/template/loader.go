package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/aps-observer/internal/topics"
)

// templateFile is the on-disk shape of one topic-group file.
//
// Templates are declared as a list so their order is preserved; pattern
// precedence ("first declared wins") depends on it.
type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// ensureLoaded reads the template tree exactly once.
func (m *Manager) ensureLoaded() {
	m.loadOnce.Do(func() {
		m.loadErr = m.load()
	})
}

// load walks the template directory. Each subdirectory is a category;
// each .yaml file within declares one or more topic templates.
//
// Load-time failure modes:
//   - unreadable directory or malformed YAML: error (fatal at startup)
//   - duplicate exact topic across files: error
//   - a pattern shadowing an exact topic: warning, not fatal
func (m *Manager) load() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	// Deterministic traversal: categories and files in name order.
	var categories []string
	for _, entry := range entries {
		if entry.IsDir() {
			categories = append(categories, entry.Name())
		}
	}
	sort.Strings(categories)

	for _, category := range categories {
		if err := m.loadCategory(category); err != nil {
			return err
		}
	}

	m.flagCollisions()
	return nil
}

// loadCategory reads every YAML file in one category directory.
func (m *Manager) loadCategory(category string) error {
	dir := filepath.Join(m.dir, category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: reading category %s: %w", ErrLoadFailed, category, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := m.loadFile(category, path); err != nil {
			return err
		}
	}

	if len(files) > 0 {
		m.categories[category] = struct{}{}
	}
	return nil
}

// loadFile parses one topic-group file and registers its templates.
func (m *Manager) loadFile(category, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrLoadFailed, path, err)
	}

	for _, tpl := range file.Templates {
		if tpl == nil || tpl.Topic == "" {
			return fmt.Errorf("%w: %s declares a template without a topic", ErrLoadFailed, path)
		}
		tpl.Category = category

		if strings.Contains(tpl.Topic, "{") {
			m.patterns = append(m.patterns, tpl)
			continue
		}

		if _, dup := m.exact[tpl.Topic]; dup {
			return fmt.Errorf("%w: %q declared twice (second in %s)", ErrDuplicateTemplate, tpl.Topic, path)
		}
		m.exact[tpl.Topic] = tpl
	}

	return nil
}

// flagCollisions warns when a pattern also covers an exact topic.
// The exact entry always wins, so this is diagnostic only.
func (m *Manager) flagCollisions() {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()
	if logger == nil {
		return
	}

	for topic := range m.exact {
		for _, tpl := range m.patterns {
			if topics.MatchPattern(topic, tpl.Topic) {
				logger.Warn("template pattern shadows exact topic",
					"topic", topic,
					"pattern", tpl.Topic,
				)
			}
		}
	}
}
