package email

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates(t *testing.T) {
	tm := NewDefaultTemplateManager()
	assert.ElementsMatch(t, []string{TemplateNewReview, TemplatePlanChanged, TemplatePlanExpired}, tm.TemplateNames())

	out, err := tm.Render(TemplateNewReview, TemplateData{
		"ShopName":     "Acme",
		"CustomerName": "<script>",
		"Rating":       5,
		"Text":         "Great",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "5 из 5")
	assert.NotContains(t, out, "<script>")
}

func TestTemplatesFromDirOverrideBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateNewReview+".html"), []byte(`<p>{{.ShopName}}: {{.Rating}}★</p>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weekly_digest.html"), []byte(`<p>digest for {{.ShopName}}</p>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`{{`), 0o644))

	tm, err := NewTemplateManagerFromDir(dir)
	require.NoError(t, err)

	out, err := tm.Render(TemplateNewReview, TemplateData{"ShopName": "Acme", "Rating": 4})
	require.NoError(t, err)
	assert.Equal(t, "<p>Acme: 4★</p>", out)

	assert.NotNil(t, tm.GetTemplate("weekly_digest"))
	assert.NotNil(t, tm.GetTemplate(TemplatePlanExpired))
	assert.Nil(t, tm.GetTemplate("notes"))
}

func TestTemplatesFromDirErrors(t *testing.T) {
	tm, err := NewTemplateManagerFromDir("")
	require.NoError(t, err)
	assert.Len(t, tm.TemplateNames(), 3)

	_, err = NewTemplateManagerFromDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.html"), []byte(`{{.ShopName`), 0o644))
	_, err = NewTemplateManagerFromDir(dir)
	assert.Error(t, err)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := NewTemplateManager().Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPProviderValidate(t *testing.T) {
	_, err := NewSMTPProvider(&SMTPConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewSMTPProvider(&SMTPConfig{Host: "smtp.local", Port: 25}, nil)
	assert.Error(t, err)

	p, err := NewSMTPProvider(&SMTPConfig{Host: "smtp.local", Port: 25, FromEmail: "noreply@local"}, NewDefaultTemplateManager())
	require.NoError(t, err)
	assert.Error(t, p.Send(&Email{}))
}
