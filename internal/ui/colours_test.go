package ui_test

import (
	"testing"

	"github.com/jrsteele09/go-lms-client/internal/ui"
	"github.com/stretchr/testify/require"
)

// TestMethod tests method padding and colouring
func TestMethod(t *testing.T) {
	require.Equal(t, ui.Green+" GET    "+ui.ResetColor, ui.Method("GET"))
	require.Equal(t, ui.Gray+" OPTIONS"+ui.ResetColor, ui.Method("OPTIONS"))
}

// TestStatus tests status colouring by class
func TestStatus(t *testing.T) {
	require.Equal(t, ui.Green+"200"+ui.ResetColor, ui.Status(200))
	require.Equal(t, ui.Yellow+"429"+ui.ResetColor, ui.Status(429))
	require.Equal(t, ui.Red+"0"+ui.ResetColor, ui.Status(0))
}
