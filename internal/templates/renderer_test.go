package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileInlineEmptySourceReturnsNilTemplate(t *testing.T) {
	renderer := NewRenderer(nil)

	tmpl, err := renderer.CompileInline("brief", "   ")
	require.NoError(t, err)
	require.Nil(t, tmpl)
}

func TestCompileInlineRendersWithSprigFunctions(t *testing.T) {
	renderer := NewRenderer(nil)

	tmpl, err := renderer.CompileInline("brief", "{{ .ThreatLevel | upper }} on {{ .SrcIP }}")
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{"ThreatLevel": "high", "SrcIP": "198.51.100.7"})
	require.NoError(t, err)
	require.Equal(t, "HIGH on 198.51.100.7", out)
}

func TestCompileInlineMissingKeyRendersZeroValue(t *testing.T) {
	renderer := NewRenderer(nil)

	tmpl, err := renderer.CompileInline("brief", "score={{ .Score }}")
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "score=<no value>", out)
}

func TestRendererEnvFunctionsAreSandboxedWhenSandboxNil(t *testing.T) {
	t.Setenv("FROSTGATE_SECRET", "do-not-leak")
	renderer := NewRenderer(nil)

	tmpl, err := renderer.CompileInline("inline", `{{ env "FROSTGATE_SECRET" }}`)
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "", out)

	tmpl, err = renderer.CompileInline("inline", `{{ expandenv "$FROSTGATE_SECRET" }}`)
	require.NoError(t, err)
	out, err = tmpl.Render(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "", out)
}

func TestRendererEnvFunctionsHonorSandboxAllowlist(t *testing.T) {
	dir := t.TempDir()
	sandbox, err := NewSandbox(dir, true, []string{"FROSTGATE_REGION"})
	require.NoError(t, err)
	t.Setenv("FROSTGATE_REGION", "us-east-1")

	renderer := NewRenderer(sandbox)
	tmpl, err := renderer.CompileInline("inline", `{{ env "FROSTGATE_REGION" }}`)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "us-east-1", out)
}

func TestRendererStripsSprigFilesystemHelpers(t *testing.T) {
	renderer := NewRenderer(nil)

	for _, name := range []string{"readFile", "mustReadFile", "readDir", "mustReadDir", "glob"} {
		_, ok := renderer.funcs[name]
		require.Falsef(t, ok, "expected sprig helper %q to be stripped", name)
	}

	_, err := renderer.CompileInline("inline", `{{ readFile "/etc/passwd" }}`)
	require.Error(t, err)
}

func TestCompileFileRequiresSandbox(t *testing.T) {
	renderer := NewRenderer(nil)
	_, err := renderer.CompileFile("brief.tmpl")
	require.Error(t, err)
}

func TestCompileFileRendersFromSandboxRoot(t *testing.T) {
	dir := t.TempDir()
	templatesDir := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(templatesDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "brief.txt"), []byte("decision for {{ .TenantID }}"), 0o600))

	sandbox, err := NewSandbox(templatesDir, false, nil)
	require.NoError(t, err)
	renderer := NewRenderer(sandbox)

	tmpl, err := renderer.CompileFile("brief.txt")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"TenantID": "tenant-1"})
	require.NoError(t, err)
	require.Equal(t, "decision for tenant-1", out)

	_, err = renderer.CompileFile("../escape.txt")
	require.Error(t, err)
}

func TestRendererSandboxAccessorAndTemplateName(t *testing.T) {
	dir := t.TempDir()
	sandbox, err := NewSandbox(dir, false, nil)
	require.NoError(t, err)
	renderer := NewRenderer(sandbox)

	require.Equal(t, sandbox, renderer.Sandbox())

	tmpl, err := renderer.CompileInline("explanation_brief", "static")
	require.NoError(t, err)
	require.Equal(t, "explanation_brief", tmpl.Name())
}

func TestTemplateRenderOnNilTemplateErrors(t *testing.T) {
	var tmpl *Template
	_, err := tmpl.Render(map[string]any{})
	require.Error(t, err)
}
