package normalizer

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed data/korean_rules.yaml
var rulesYAML []byte

// Abbreviation một quy tắc mở rộng viết tắt hành chính
type Abbreviation struct {
	Abbr string `yaml:"abbr"`
	Full string `yaml:"full"`
}

// RulesConfig chứa cấu hình rules được load từ YAML
type RulesConfig struct {
	Abbreviations    []Abbreviation `yaml:"abbreviations"`
	AdminAreaPattern string         `yaml:"admin_area_pattern"`
	Provinces        []string       `yaml:"provinces"`
}

// LoadRulesConfig load cấu hình rules từ embedded YAML
func LoadRulesConfig() (*RulesConfig, error) {
	return parseRules(rulesYAML)
}

func parseRules(data []byte) (*RulesConfig, error) {
	config := &RulesConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("lỗi parse rules YAML: %w", err)
	}
	if len(config.Abbreviations) == 0 {
		return nil, fmt.Errorf("rules YAML không có abbreviations")
	}
	if _, err := regexp.Compile(config.AdminAreaPattern); err != nil || config.AdminAreaPattern == "" {
		return nil, fmt.Errorf("admin_area_pattern không hợp lệ: %q", config.AdminAreaPattern)
	}
	return config, nil
}
