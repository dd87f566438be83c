package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Language is a selectable translation target.
type Language struct {
	Code string `yaml:"code" json:"code"` // BCP-47, e.g. "fr-FR"
	Name string `yaml:"name" json:"name"`
}

type languagesFile struct {
	Languages []Language `yaml:"languages"`
}

// DefaultLanguages is used when no LANGUAGES_FILE is configured.
func DefaultLanguages() []Language {
	return []Language{
		{Code: "en-US", Name: "English"},
		{Code: "es-ES", Name: "Spanish"},
		{Code: "fr-FR", Name: "French"},
		{Code: "de-DE", Name: "German"},
		{Code: "it-IT", Name: "Italian"},
		{Code: "pt-BR", Name: "Portuguese"},
		{Code: "ja-JP", Name: "Japanese"},
		{Code: "ko-KR", Name: "Korean"},
		{Code: "cmn-CN", Name: "Mandarin Chinese"},
		{Code: "hi-IN", Name: "Hindi"},
		{Code: "ar-XA", Name: "Arabic"},
	}
}

// LoadLanguages reads a YAML file of the form:
//
//	languages:
//	  - code: fr-FR
//	    name: French
func LoadLanguages(path string) ([]Language, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read languages file: %w", err)
	}
	var f languagesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse languages file: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("languages file %s lists no languages", path)
	}
	seen := make(map[string]bool, len(f.Languages))
	for _, l := range f.Languages {
		if l.Code == "" || l.Name == "" {
			return nil, fmt.Errorf("languages file %s: entry needs code and name", path)
		}
		if seen[l.Code] {
			return nil, fmt.Errorf("languages file %s: duplicate code %q", path, l.Code)
		}
		seen[l.Code] = true
	}
	return f.Languages, nil
}

// FindLanguage looks a language up by code.
func FindLanguage(langs []Language, code string) (Language, bool) {
	for _, l := range langs {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}
