package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aqua-guard/internal/model"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape shared by the JSON and YAML formats
type ruleFile struct {
	Rules []model.Rule `json:"rules" yaml:"rules"`
}

func readRules(filename, format string, unmarshal func([]byte, interface{}) error) ([]model.Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f ruleFile
	if err := unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s rules file %s: %w", format, filename, err)
	}
	return f.Rules, nil
}

// LoadRulesFromJSON loads a {"rules": [...]} document
func LoadRulesFromJSON(filename string) ([]model.Rule, error) {
	return readRules(filename, "JSON", json.Unmarshal)
}

// LoadRulesFromYAML loads a document with a top-level rules list
func LoadRulesFromYAML(filename string) ([]model.Rule, error) {
	return readRules(filename, "YAML", yaml.Unmarshal)
}

// LoadRules picks the decoder from the file extension, trying YAML then JSON when unknown
func LoadRules(filename string) ([]model.Rule, error) {
	if filename == "" {
		return nil, fmt.Errorf("rules file path is empty")
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return LoadRulesFromYAML(filename)
	case ".json":
		return LoadRulesFromJSON(filename)
	}

	if rules, err := LoadRulesFromYAML(filename); err == nil {
		return rules, nil
	}
	return LoadRulesFromJSON(filename)
}
