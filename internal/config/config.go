package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Settings is the subset of configuration the dispatch layer consumes.
type Settings struct {
	Core  CoreSettings            `json:"core" yaml:"core"`
	Pager map[string]PagerSetting `json:"pager,omitempty" yaml:"pager,omitempty"`
}

// CoreSettings holds the core.* keys used while setting up a command.
type CoreSettings struct {
	// Pager is core.pager, the configured pager program.
	Pager string `json:"pager,omitempty" yaml:"pager,omitempty"`
	// Bare is core.bare; nil when unset.
	Bare *bool `json:"bare,omitempty" yaml:"bare,omitempty"`
	// Worktree is core.worktree, relative to the control directory when not absolute.
	Worktree string `json:"worktree,omitempty" yaml:"worktree,omitempty"`
}

// PagerSetting is the value of pager.<cmd>. It is either a boolean or a
// program name; a program name implies paging is on.
type PagerSetting struct {
	Enabled bool
	Program string
}

// UnmarshalJSON accepts a boolean or a string.
func (p *PagerSetting) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*p = PagerSetting{Enabled: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("pager setting must be a boolean or a string, got %s", string(data))
	}
	*p = pagerSettingFromString(s)
	return nil
}

// MarshalJSON writes the program when set and the boolean otherwise.
func (p PagerSetting) MarshalJSON() ([]byte, error) {
	if p.Program != "" {
		return json.Marshal(p.Program)
	}
	return json.Marshal(p.Enabled)
}

// UnmarshalYAML accepts a boolean or a string scalar.
func (p *PagerSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: pager setting must be a scalar", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*p = PagerSetting{Enabled: b}
		return nil
	}
	*p = pagerSettingFromString(node.Value)
	return nil
}

func pagerSettingFromString(s string) PagerSetting {
	if b, ok := ParseBool(s); ok {
		return PagerSetting{Enabled: b}
	}
	return PagerSetting{Enabled: true, Program: s}
}

// ParseBool parses the boolean spellings accepted in settings files.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

// PagerFor returns the pager.<cmd> setting and whether it is present.
func (s *Settings) PagerFor(cmd string) (PagerSetting, bool) {
	if s == nil || s.Pager == nil {
		return PagerSetting{}, false
	}
	p, ok := s.Pager[cmd]
	return p, ok
}

// CorePager returns core.pager, or "" for a nil Settings.
func (s *Settings) CorePager() string {
	if s == nil {
		return ""
	}
	return s.Core.Pager
}

// Load reads the global settings and, when controlDir is non-empty, the
// repository settings on top of them. Missing files are skipped; a file that
// exists but cannot be parsed is reported and the remaining files still load.
func Load(controlDir string, env Env) (*Settings, error) {
	return loadPaths(append(GlobalConfigPaths(env), RepositoryConfigPaths(controlDir)...))
}

// LoadRepository reads only the settings stored in controlDir. Repository
// layout keys (core.bare, core.worktree) come from here so a global file
// cannot move every work tree.
func LoadRepository(controlDir string) (*Settings, error) {
	return loadPaths(RepositoryConfigPaths(controlDir))
}

func loadPaths(paths []string) (*Settings, error) {
	settings := &Settings{Pager: make(map[string]PagerSetting)}

	var errs []error
	loaded := make(map[string]bool)
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			continue
		}
		loaded[absPath] = true
		if err := loadSettingsFile(path, settings); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
		}
	}

	return settings, errors.Join(errs...)
}

// loadSettingsFile loads a single settings file with interpolation support.
func loadSettingsFile(path string, settings *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data)

	var fileSettings Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileSettings)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), &fileSettings)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	mergeSettings(settings, &fileSettings)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate expands {env:VAR_NAME} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// mergeSettings merges source settings into target.
func mergeSettings(target, source *Settings) {
	if source.Core.Pager != "" {
		target.Core.Pager = source.Core.Pager
	}
	if source.Core.Bare != nil {
		bare := *source.Core.Bare
		target.Core.Bare = &bare
	}
	if source.Core.Worktree != "" {
		target.Core.Worktree = source.Core.Worktree
	}

	if source.Pager != nil {
		if target.Pager == nil {
			target.Pager = make(map[string]PagerSetting)
		}
		for k, v := range source.Pager {
			target.Pager[k] = v
		}
	}
}

// Values flattens the settings into dotted keys, e.g. "core.pager" and
// "pager.log". Unset keys are omitted.
func (s *Settings) Values() map[string]string {
	values := make(map[string]string)
	if s == nil {
		return values
	}
	if s.Core.Pager != "" {
		values["core.pager"] = s.Core.Pager
	}
	if s.Core.Bare != nil {
		values["core.bare"] = strconv.FormatBool(*s.Core.Bare)
	}
	if s.Core.Worktree != "" {
		values["core.worktree"] = s.Core.Worktree
	}
	for cmd, p := range s.Pager {
		if p.Program != "" {
			values["pager."+cmd] = p.Program
		} else {
			values["pager."+cmd] = strconv.FormatBool(p.Enabled)
		}
	}
	return values
}

// Get returns the value of a dotted key. Section names are case-insensitive.
func (s *Settings) Get(key string) (string, bool) {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return "", false
	}
	v, ok := s.Values()[strings.ToLower(section)+"."+name]
	return v, ok
}
