package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/session"
	"github.com/roach88/sensorsync/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_TextSuccessWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"ignored": "yes"}))
	assert.Empty(t, buf.String())
}

func TestOutputFormatter_FailJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := ir.NewOutOfRangeError("motor", 2, 9, 0, 1, 0.5)
	err := formatter.Fail(ExitFailure, "failed to align motor", cause, map[string]int{"index": 2})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OUT_OF_RANGE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "failed to align motor")
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_FailText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitCommandError, "bad flag", nil, nil)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "bad flag", err.Error())
	assert.Empty(t, buf.String(), "text mode leaves error printing to main")
}

func TestOutputFormatter_Printf(t *testing.T) {
	buf := &bytes.Buffer{}
	text := &OutputFormatter{Format: "text", Writer: buf}
	text.Printf("hello %d\n", 1)
	assert.Equal(t, "hello 1\n", buf.String())

	buf.Reset()
	js := &OutputFormatter{Format: "json", Writer: buf}
	js.Printf("hello %d\n", 1)
	assert.Empty(t, buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}
	quiet.VerboseLog("hidden")
	assert.Empty(t, errOut.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
	loud.VerboseLog("loaded %d", 3)
	assert.Equal(t, "loaded 3\n", errOut.String())
	assert.Empty(t, out.String(), "verbose output must not corrupt stdout")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"engine error", ir.NewDuplicateStreamError("a"), "DUPLICATE_STREAM"},
		{"wrapped engine error", fmt.Errorf("stream: %w", ir.NewInvalidSeriesError("a", 1, "bad")), "INVALID_SERIES"},
		{"session error", &session.LoadError{Code: session.ErrCodeSchema, Message: "x"}, "E006"},
		{"not found", fmt.Errorf("series %q: %w", "a", store.ErrNotFound), ErrCodeNotFound},
		{"other", errors.New("boom"), ErrCodeGeneric},
		{"nil", nil, ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to store", cause)
	assert.Equal(t, "failed to store: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "x"))))
}
