package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDevelopmentLoggerEnablesDebug(t *testing.T) {
	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger.Check(zap.DebugLevel, "debug enabled"))
}

func TestNewProductionLoggerSuppressesDebug(t *testing.T) {
	logger, err := New(false)
	require.NoError(t, err)
	require.Nil(t, logger.Check(zap.DebugLevel, "debug suppressed"))
	require.NotNil(t, logger.Check(zap.InfoLevel, "info enabled"))
}
