package template

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

func ExecuteSqlTemplate(templatePath string, params map[string]any) (string, error) {
	content, err := ReadSqlTemplate(templatePath)
	if err != nil {
		return "", err
	}

	return RenderSqlTemplate(content, params)
}

// RenderSqlTemplate executes a text/template SQL string with params.
func RenderSqlTemplate(content string, params map[string]any) (string, error) {
	tmpl, err := template.New("sql").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// ReadSqlTemplate reads a SQL template file and returns its contents as a string
func ReadSqlTemplate(templatePath string) (string, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(content), nil
}
