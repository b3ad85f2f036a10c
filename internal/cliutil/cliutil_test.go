package cliutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

type sample struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("disk full")))
	assert.Equal(t, 2, ExitCode(&domain.ValidationError{Field: "priority", Value: "urgent", Reason: "bad"}))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("add: %w", &domain.ValidationError{Field: "name", Reason: "is required"})))
	assert.Equal(t, 1, ExitCode(&domain.TaskNotFoundError{TaskID: "x"}))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.True(t, domain.IsValidation(err))
}

func TestRender_YAMLKeepsJSONNamesAndOrder(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, FormatYAML, sample{Name: "build", Count: 2, Version: "1.0", Tags: []string{"a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "name: build\ncount: 2\nversion: \"1.0\"\ntags:\n  - a\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, sample{Name: "x"}, nil))
	assert.Contains(t, buf.String(), "\"name\": \"x\"")
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, nil, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello\n")
		return err
	}))
	assert.Equal(t, "hello\n", buf.String())
}
