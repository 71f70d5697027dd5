package tool

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor overrides the operator-facing text of a registered tool.
//
//	tools:
//	  - name: search_images
//	    success_hint: The images are already displayed.
//	  - name: manage_invoice
//	    disabled: true
type Descriptor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	SuccessHint string `yaml:"success_hint,omitempty"`
	Disabled    bool   `yaml:"disabled,omitempty"`
}

type descriptorFile struct {
	Tools []Descriptor `yaml:"tools"`
}

func LoadDescriptors(path string) ([]Descriptor, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool descriptors: %w", err)
	}
	return ParseDescriptors(data)
}

func ParseDescriptors(data []byte) ([]Descriptor, error) {
	var f descriptorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tool descriptors: %w", err)
	}
	for i, d := range f.Tools {
		if NormalizeToolName(d.Name) == "" {
			return nil, fmt.Errorf("tool descriptor %d has no name", i)
		}
	}
	return f.Tools, nil
}

// ApplyOverrides patches registered tools and returns how many descriptors matched.
// Disabled tools are unregistered.
func (r *Registry) ApplyOverrides(descriptors []Descriptor) int {
	var disabled []string
	applied := 0

	r.mu.Lock()
	for _, d := range descriptors {
		name := NormalizeToolName(d.Name)
		e, ok := r.tools[name]
		if !ok {
			slog.Warn("Tool descriptor does not match a registered tool", "tool", name)
			continue
		}
		applied++
		if d.Disabled {
			disabled = append(disabled, name)
			continue
		}
		if desc := strings.TrimSpace(d.Description); desc != "" {
			e.def.Description = desc
		}
		if hint := strings.TrimSpace(d.SuccessHint); hint != "" {
			e.def.SuccessHint = hint
		}
		r.tools[name] = e
	}
	r.mu.Unlock()

	for _, name := range disabled {
		r.Unregister(name)
	}
	return applied
}

// MarshalDescriptors renders the current registry as a descriptor file.
func (r *Registry) MarshalDescriptors() ([]byte, error) {
	defs := r.Definitions()
	f := descriptorFile{Tools: make([]Descriptor, 0, len(defs))}
	for _, def := range defs {
		f.Tools = append(f.Tools, Descriptor{Name: def.Name, Description: def.Description, SuccessHint: def.SuccessHint})
	}
	return yaml.Marshal(f)
}
