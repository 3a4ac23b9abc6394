package scene

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/df07/go-grrt/pkg/config"
	"github.com/df07/go-grrt/pkg/core"
	"gopkg.in/yaml.v3"
)

// ErrUnknownScene is returned when a scene ID matches no preset or file.
var ErrUnknownScene = errors.New("unknown scene")

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Scene name
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "file"
	Scenario    string `json:"scenario"`    // "redshift" or "synchrotron"
	FilePath    string `json:"filePath"`    // Path to run file (file type only)
	Variant     string `json:"variant"`     // Variant name (optional)
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

const builtInGroup = "Built-in Scenes"

// scenesDir finds the run file directory relative to the working directory.
func scenesDir() string {
	for _, path := range []string{"scenes", "../scenes"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ListFileScenes scans the scenes directory for run files.
func ListFileScenes() ([]SceneInfo, error) {
	dir := scenesDir()
	if dir == "" {
		return []SceneInfo{}, nil
	}
	return ListFileScenesIn(dir)
}

// ListFileScenesIn returns the run files in dir, sorted by display name.
func ListFileScenesIn(dir string) ([]SceneInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := []SceneInfo{}
	for _, filePath := range files {
		info, err := ParseRunMetadata(filePath)
		if err != nil {
			core.Logger().Warn("failed to parse scene metadata", "file", filePath, "error", err)
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// ParseRunMetadata extracts metadata from the header comments of a run file
// and its scenario field.
func ParseRunMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	info := SceneInfo{
		ID:          "file:" + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Group:       "Run Files",
		Type:        "file",
		FilePath:    filePath,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return info, err
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#") {
			break
		}
		content, ok := strings.CutPrefix(line, "# ")
		if !ok {
			continue
		}
		if v, ok := strings.CutPrefix(content, "Scene:"); ok {
			info.Name = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(content, "Variant:"); ok {
			info.Variant = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(content, "Description:"); ok {
			info.Description = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(content, "Group:"); ok {
			info.Group = strings.TrimSpace(v)
		}
	}

	if info.Variant != "" {
		info.DisplayName = fmt.Sprintf("%s - %s", info.Name, info.Variant)
	} else {
		info.DisplayName = info.Name
	}

	scenario, err := peekScenario(data)
	if err != nil {
		return info, err
	}
	info.Scenario = scenario
	return info, scanner.Err()
}

// BuiltInScenes describes the presets.
func BuiltInScenes() []SceneInfo {
	return []SceneInfo{
		{
			ID:          config.Redshift,
			Name:        "Disk Redshift",
			DisplayName: "Disk Redshift",
			Description: "Redshift of a thin Keplerian disk, a = 0, cos i = 0.25, 512x512",
			Group:       builtInGroup,
			Type:        "builtin",
			Scenario:    config.Redshift,
		},
		{
			ID:          config.Synchrotron,
			Name:        "Synchrotron Shell",
			DisplayName: "Synchrotron Shell",
			Description: "340 GHz thermal synchrotron from a Keplerian shell, a = 0, i = 45, 128x128",
			Group:       builtInGroup,
			Type:        "builtin",
			Scenario:    config.Synchrotron,
		},
	}
}

// ListAllScenes returns both built-in and file scenes, grouped by category
func ListAllScenes() (ScenesResponse, error) {
	var response ScenesResponse

	fileScenes, err := ListFileScenes()
	if err != nil {
		return response, fmt.Errorf("failed to list run files: %w", err)
	}

	groupMap := make(map[string][]SceneInfo)
	for _, s := range append(BuiltInScenes(), fileScenes...) {
		groupMap[s.Group] = append(groupMap[s.Group], s)
	}

	var groupNames []string
	for name := range groupMap {
		if name != builtInGroup {
			groupNames = append(groupNames, name)
		}
	}
	sort.Strings(groupNames)

	if scenes, ok := groupMap[builtInGroup]; ok {
		response.Groups = append(response.Groups, SceneGroup{Name: builtInGroup, Scenes: scenes})
	}
	for _, name := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{Name: name, Scenes: groupMap[name]})
	}
	return response, nil
}

// Resolve returns the run for a scene ID: a preset name, "file:<name>" for a
// file in the scenes directory, or a path to a run file.
func Resolve(id string) (config.Run, error) {
	if run, ok := Preset(id); ok {
		return run, nil
	}
	if name, ok := strings.CutPrefix(id, "file:"); ok {
		dir := scenesDir()
		if dir == "" {
			return config.Run{}, fmt.Errorf("%w: %s", ErrUnknownScene, id)
		}
		return Load(filepath.Join(dir, name+".yaml"))
	}
	if strings.HasSuffix(id, ".yaml") || strings.HasSuffix(id, ".yml") {
		return Load(id)
	}
	return config.Run{}, fmt.Errorf("%w: %s", ErrUnknownScene, id)
}

// Load reads a run file. Parameters the file omits are taken from the preset
// of its scenario.
func Load(path string) (config.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Run{}, err
	}
	return Parse(data)
}

// Parse decodes run YAML over the preset of its scenario.
func Parse(data []byte) (config.Run, error) {
	scenario, err := peekScenario(data)
	if err != nil {
		return config.Run{}, err
	}
	base, ok := Preset(scenario)
	if !ok {
		return config.Run{}, &config.Error{Field: "scenario", Reason: fmt.Sprintf("unknown scenario %q", scenario)}
	}
	return config.FromYAML(data, base)
}

func peekScenario(data []byte) (string, error) {
	var head struct {
		Scenario string `yaml:"scenario"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("invalid run yaml: %w", err)
	}
	return head.Scenario, nil
}

// titleCase converts a filename-style string to title case
// e.g., "kerr-edge-on" -> "Kerr Edge On"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
