package mcperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNew_AppendsGuidance(t *testing.T) {
	txt := resultText(t, New(InvalidReference, "bad cell 1A"))
	require.Contains(t, txt, "INVALID_REFERENCE: bad cell 1A")
	require.Contains(t, txt, "nextSteps:")
}

func TestNew_DefaultMessage(t *testing.T) {
	txt := resultText(t, New(NotFound, ""))
	require.Contains(t, txt, "NOT_FOUND: resource not found")
}

func TestFromText_UnknownCode(t *testing.T) {
	txt := resultText(t, FromText("WEIRD: something"))
	require.Equal(t, "WEIRD: something", txt)
}

func TestCodeOf(t *testing.T) {
	base := Errorf(AlreadyExists, "sheet %q exists", "Data")
	wrapped := fmt.Errorf("create: %w", base)
	require.Equal(t, AlreadyExists, CodeOf(wrapped, WriteFailed))
	require.Equal(t, WriteFailed, CodeOf(errors.New("plain"), WriteFailed))
	require.Nil(t, Wrap(ReadFailed, nil, "x"))
}

func TestResult(t *testing.T) {
	err := Wrap(OpenFailed, errors.New("zip: not a valid zip file"), "open book.xlsx")
	txt := resultText(t, Result(err, WriteFailed))
	require.Contains(t, txt, "OPEN_FAILED: open book.xlsx: zip: not a valid zip file")
}

func TestCatalogEntriesHaveGuidance(t *testing.T) {
	for code, e := range catalog {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, code)
		require.NotEmpty(t, e.NextSteps, code)
	}
}
