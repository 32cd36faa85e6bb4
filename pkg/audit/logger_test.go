package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/audit"
)

func TestLogger_WritesOneJSONLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), audit.EventEvaluation, "evaluate", "statute:R1", map[string]interface{}{
		"entity_id": "person-1",
	})
	require.NoError(t, err)

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, audit.EventEvaluation, decoded.Type)
	require.Equal(t, "evaluate", decoded.Action)
	require.Equal(t, "statute:R1", decoded.Resource)
	require.NotEmpty(t, decoded.ID)
}

func TestLogger_DefaultsToStdoutWhenWriterNil(t *testing.T) {
	logger := audit.NewLoggerWithWriter(nil)
	require.NotNil(t, logger)
}
