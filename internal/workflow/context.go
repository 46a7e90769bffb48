package workflow

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Context is the per-invocation situational fingerprint. It is derived
// from host input at trigger time and never persisted.
type Context struct {
	WorkflowName      string        `json:"workflow_name"`
	TargetPath        string        `json:"target_path,omitempty"`
	ActiveFile        string        `json:"active_file,omitempty"`
	FolderName        string        `json:"folder_name,omitempty"`
	ProjectTypeHint   string        `json:"project_type_hint,omitempty"`
	FileExtensions    []string      `json:"file_extensions,omitempty"`
	Scope             Scope         `json:"scope"`
	TriggerSource     TriggerSource `json:"trigger_source"`
	HasExplicitTarget bool          `json:"has_explicit_target"`
	IsFromHistory     bool          `json:"is_from_history"`
}

// RawInput is what the host tool hands over when a workflow is invoked.
type RawInput struct {
	// TargetPath is the file or folder the command was invoked on,
	// empty when the command came without a target.
	TargetPath string
	// ActiveFile is the file open in the editor, if any.
	ActiveFile string
	// ProjectRoot is the workspace root, used for project-type
	// detection. Empty disables detection.
	ProjectRoot string
	// OpenFiles are the paths of currently open editor tabs; their
	// extensions feed the context signature.
	OpenFiles []string
}

// statFile is a package-level var to allow test injection of
// project-marker probing.
var statFile = os.Stat

// projectMarkers maps well-known root files to a project-type hint.
// Probed in order so multi-ecosystem repos get a stable answer.
var projectMarkers = []struct {
	file string
	hint string
}{
	{"go.mod", "go"},
	{"package.json", "node"},
	{"Cargo.toml", "rust"},
	{"pyproject.toml", "python"},
	{"pom.xml", "java"},
}

// GatherContext derives an invocation context from raw host input.
// It is the only place scope, extensions, and the project-type hint
// are computed, so the trigger engine and pattern signatures always
// agree on what they saw.
func GatherContext(workflowName string, raw RawInput, source TriggerSource) Context {
	ctx := Context{
		WorkflowName:      workflowName,
		TargetPath:        raw.TargetPath,
		ActiveFile:        raw.ActiveFile,
		TriggerSource:     source,
		HasExplicitTarget: raw.TargetPath != "",
		IsFromHistory:     source == SourceHistory,
	}

	ctx.Scope = deriveScope(raw)
	ctx.FolderName = deriveFolderName(raw)
	ctx.ProjectTypeHint = detectProjectType(raw.ProjectRoot)
	ctx.FileExtensions = collectExtensions(raw)

	return ctx
}

// deriveScope classifies the invocation target.
func deriveScope(raw RawInput) Scope {
	switch {
	case raw.TargetPath == "" && raw.ActiveFile == "":
		return ScopeProject
	case raw.TargetPath == "":
		// No explicit target but an active file: the host will act on
		// the open editor.
		return ScopeFile
	case looksLikeFolder(raw.TargetPath):
		return ScopeFolder
	case filepath.Ext(raw.TargetPath) != "":
		return ScopeFile
	default:
		return ScopeUnknown
	}
}

// looksLikeFolder is a heuristic: a trailing separator always means
// folder, and an extensionless basename usually does.
func looksLikeFolder(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	base := filepath.Base(path)
	return !strings.Contains(base, ".")
}

func deriveFolderName(raw RawInput) string {
	path := raw.TargetPath
	if path == "" {
		path = raw.ActiveFile
	}
	if path == "" {
		return ""
	}
	path = strings.TrimRight(path, "/"+string(os.PathSeparator))
	if looksLikeFolder(raw.TargetPath) && raw.TargetPath != "" {
		return filepath.Base(path)
	}
	return filepath.Base(filepath.Dir(path))
}

// detectProjectType probes well-known marker files at the project root.
func detectProjectType(root string) string {
	if root == "" {
		return ""
	}
	for _, m := range projectMarkers {
		if _, err := statFile(filepath.Join(root, m.file)); err == nil {
			return m.hint
		}
	}
	return ""
}

// collectExtensions gathers the deduplicated, sorted extension set from
// the target and open files. Sorting here keeps signatures stable for
// set-equal contexts.
func collectExtensions(raw RawInput) []string {
	seen := make(map[string]bool)
	add := func(path string) {
		if ext := strings.ToLower(filepath.Ext(path)); ext != "" {
			seen[ext] = true
		}
	}

	add(raw.TargetPath)
	add(raw.ActiveFile)
	for _, f := range raw.OpenFiles {
		add(f)
	}

	if len(seen) == 0 {
		return nil
	}
	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
