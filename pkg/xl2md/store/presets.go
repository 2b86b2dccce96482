// Package store persists conversion presets and conversion history as
// keyed JSON files.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"xl2md/pkg/xl2md"
)

// Preset is a named, serializable set of conversion options.
type Preset struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ChunkSize       int    `json:"chunk_size"`
	CreateTOC       bool   `json:"create_toc"`
	ExtractImages   bool   `json:"extract_images"`
	GenerateSummary bool   `json:"generate_summary"`
	ShowFormulas    bool   `json:"show_formulas"`
	DetectHeader    bool   `json:"detect_header"`
	IncludeHidden   bool   `json:"include_hidden"`
	ImageFormat     string `json:"image_format"`
	MaxImageWidth   int    `json:"max_image_width"`
	MaxImageHeight  int    `json:"max_image_height"`
}

// Options expands the preset into conversion options, starting from the
// defaults so that zero-valued fields added later stay sane.
func (p Preset) Options() xl2md.Options {
	opts := xl2md.DefaultOptions()
	opts.ChunkSize = p.ChunkSize
	opts.CreateTOC = p.CreateTOC
	opts.ExtractImages = p.ExtractImages
	opts.GenerateSummary = p.GenerateSummary
	opts.ShowFormulas = p.ShowFormulas
	opts.DetectHeader = p.DetectHeader
	opts.IncludeHidden = p.IncludeHidden
	if p.ImageFormat != "" {
		opts.ImageFormat = p.ImageFormat
	}
	if p.MaxImageWidth > 0 {
		opts.MaxImageWidth = p.MaxImageWidth
	}
	if p.MaxImageHeight > 0 {
		opts.MaxImageHeight = p.MaxImageHeight
	}
	return opts
}

func presetFromOptions(name, description string, opts xl2md.Options) Preset {
	return Preset{
		Name:            name,
		Description:     description,
		ChunkSize:       opts.ChunkSize,
		CreateTOC:       opts.CreateTOC,
		ExtractImages:   opts.ExtractImages,
		GenerateSummary: opts.GenerateSummary,
		ShowFormulas:    opts.ShowFormulas,
		DetectHeader:    opts.DetectHeader,
		IncludeHidden:   opts.IncludeHidden,
		ImageFormat:     opts.ImageFormat,
		MaxImageWidth:   opts.MaxImageWidth,
		MaxImageHeight:  opts.MaxImageHeight,
	}
}

// builtinPresets are always available and cannot be deleted. A saved
// preset with the same name shadows the builtin.
func builtinPresets() []Preset {
	def := xl2md.DefaultOptions()

	rag := def
	rag.ChunkSize = 512
	rag.GenerateSummary = true

	full := def
	full.GenerateSummary = true
	full.IncludeHidden = true

	light := def
	light.ExtractImages = false
	light.ShowFormulas = false
	light.CreateTOC = false

	return []Preset{
		presetFromOptions("default", "standard conversion", def),
		presetFromOptions("rag-optimized", "smaller chunks with table summaries", rag),
		presetFromOptions("full", "everything, including hidden sheets", full),
		presetFromOptions("light", "tables only, no images or formula notes", light),
	}
}

// lastUsedKey is a reserved slot in the preset file holding the options
// of the most recent conversion. It never appears in List or Get.
const lastUsedKey = "__last_used__"

// PresetStore keeps user presets in one JSON file keyed by name.
type PresetStore struct {
	mu   sync.Mutex
	path string
}

func NewPresetStore(path string) *PresetStore {
	return &PresetStore{path: path}
}

// List returns builtin presets followed by saved ones, each group sorted
// by name. A saved preset shadowing a builtin appears once, with the
// saved definition.
func (s *PresetStore) List() ([]Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return nil, err
	}

	delete(saved, lastUsedKey)

	var out []Preset
	for _, p := range builtinPresets() {
		if shadow, ok := saved[p.Name]; ok {
			out = append(out, shadow)
			delete(saved, p.Name)
		} else {
			out = append(out, p)
		}
	}
	names := make([]string, 0, len(saved))
	for name := range saved {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, saved[name])
	}
	return out, nil
}

// Get looks a preset up by name, saved presets first, then builtins.
func (s *PresetStore) Get(name string) (Preset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return Preset{}, false, err
	}
	if p, ok := saved[name]; ok && name != lastUsedKey {
		return p, true, nil
	}
	for _, p := range builtinPresets() {
		if p.Name == name {
			return p, true, nil
		}
	}
	return Preset{}, false, nil
}

// Save writes or replaces a preset.
func (s *PresetStore) Save(p Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if p.Name == lastUsedKey {
		return fmt.Errorf("preset name %q is reserved", p.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return err
	}
	saved[p.Name] = p
	return s.write(saved)
}

// Delete removes a saved preset. Deleting a builtin that was never
// shadowed is an error.
func (s *PresetStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := saved[name]; !ok || name == lastUsedKey {
		return fmt.Errorf("preset %q not found", name)
	}
	delete(saved, name)
	return s.write(saved)
}

// SaveLastUsed records the options of the latest conversion so they can
// be replayed with the "last" preset.
func (s *PresetStore) SaveLastUsed(opts xl2md.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return err
	}
	saved[lastUsedKey] = presetFromOptions(lastUsedKey, "options from the most recent conversion", opts)
	return s.write(saved)
}

// LastUsed returns the most recently recorded conversion options.
func (s *PresetStore) LastUsed() (Preset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.load()
	if err != nil {
		return Preset{}, false, err
	}
	p, ok := saved[lastUsedKey]
	if ok {
		p.Name = "last"
	}
	return p, ok, nil
}

func (s *PresetStore) load() (map[string]Preset, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Preset{}, nil
	}
	if err != nil {
		return nil, err
	}
	saved := map[string]Preset{}
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parsing preset store %s: %w", s.path, err)
	}
	return saved, nil
}

func (s *PresetStore) write(saved map[string]Preset) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0o644)
}
