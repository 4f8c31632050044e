package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// SpecificItem pins a rate and HSN code to names containing Match.
type SpecificItem struct {
	Match   string  `yaml:"match"`
	GSTRate float64 `yaml:"gst_rate"`
	HSNCode string  `yaml:"hsn_code"`
}

// Category is a keyword bucket with a typical rate.
type Category struct {
	Name     string   `yaml:"name"`
	GSTRate  float64  `yaml:"gst_rate"`
	Keywords []string `yaml:"keywords"`
}

// Rules drive the classifier. They are plain data so they can be swapped
// without a rebuild.
type Rules struct {
	DefaultRate       float64        `yaml:"default_rate"`
	HSNMatchThreshold int            `yaml:"hsn_match_threshold"`
	SpecificItems     []SpecificItem `yaml:"specific_items"`
	Categories        []Category     `yaml:"categories"`
}

// DefaultRules returns the rules compiled into the binary.
func DefaultRules() Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded classifier rules: %v", err))
	}
	return r
}

// LoadRules reads rules from a YAML file. An empty path yields the
// embedded defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read classifier rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse classifier rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	for i := range r.SpecificItems {
		r.SpecificItems[i].Match = strings.ToLower(strings.TrimSpace(r.SpecificItems[i].Match))
	}
	for i := range r.Categories {
		for j, kw := range r.Categories[i].Keywords {
			r.Categories[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return r, nil
}

// Validate checks rates are percentages and names are present.
func (r Rules) Validate() error {
	var errs []string
	if !validRate(r.DefaultRate) {
		errs = append(errs, fmt.Sprintf("default_rate %v out of range", r.DefaultRate))
	}
	if r.HSNMatchThreshold < 0 || r.HSNMatchThreshold > 100 {
		errs = append(errs, fmt.Sprintf("hsn_match_threshold %d out of range", r.HSNMatchThreshold))
	}
	for i, s := range r.SpecificItems {
		if strings.TrimSpace(s.Match) == "" {
			errs = append(errs, fmt.Sprintf("specific_items[%d]: empty match", i))
		}
		if !validRate(s.GSTRate) {
			errs = append(errs, fmt.Sprintf("specific_items[%d]: gst_rate %v out of range", i, s.GSTRate))
		}
	}
	for i, c := range r.Categories {
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("categories[%d]: empty name", i))
		}
		if !validRate(c.GSTRate) {
			errs = append(errs, fmt.Sprintf("categories[%d]: gst_rate %v out of range", i, c.GSTRate))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid classifier rules:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func validRate(r float64) bool { return r >= 0 && r <= 100 }
