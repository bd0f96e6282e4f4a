package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// loadRuleBundle reads the optional FG_RULES_FILE document describing
// additional CEL-backed rules. The parser is chosen from the file extension
// (.yaml/.yml or none, .json, .toml); a missing file is an error. The caller
// only invokes this when RulesFile is non-empty.
func loadRuleBundle(path string) ([]RuleDefinition, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: rules file %s: %w", path, err)
	}
	parser, err := rulesParserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("config: load rules file %s: %w", path, err)
	}
	var doc struct {
		Rules []RuleDefinition `koanf:"rules"`
	}
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("config: decode rules file %s: %w", path, err)
	}
	return doc.Rules, nil
}

func rulesParserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: rules file %s: unsupported extension", path)
	}
}
