package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFrameStacksColumnsOverSameAxis(t *testing.T) {
	s := buildScenarioStore(t)

	frame, err := GetFrame(s, "cell", map[string]string{
		"age":  "/cell:age",
		"type": "/cell:type",
	})
	require.NoError(t, err)
	require.Equal(t, "cell", frame.Axis)
	require.Equal(t, []string{"c0", "c1", "c2", "c3"}, frame.Entries)
	require.Len(t, frame.Columns, 2)
	require.Equal(t, 3.0, frame.Columns["age"].Get(0).AsFloat64())
	require.Equal(t, "T", frame.Columns["type"].Get(0).AsString())
}

func TestGetFrameRejectsMismatchedAxis(t *testing.T) {
	s := buildScenarioStore(t)
	_, err := GetFrame(s, "cell", map[string]string{
		"groupAge": "/cell:age@type%>Sum", // resolves over axis "type", not "cell"
	})
	require.Error(t, err)
}

func TestGetFrameRejectsUnknownAxis(t *testing.T) {
	s := buildScenarioStore(t)
	_, err := GetFrame(s, "nope", map[string]string{"age": "/cell:age"})
	require.Error(t, err)
}
