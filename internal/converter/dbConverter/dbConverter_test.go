package dbConverter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimofeev/robinfolio/internal/model"
)

func TestToDbSyncRun(t *testing.T) {
	started := time.Date(2021, 10, 18, 8, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)

	report := model.RunReport{
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  []string{"ABT", "GOOG"},
		Failed:     map[string]string{"FAIL": "sell quantity exceeds open lots"},
	}

	run, err := ToDbSyncRun(report)
	require.NoError(t, err)

	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, finished, run.FinishedAt)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)

	faults := map[string]string{}
	require.NoError(t, json.Unmarshal([]byte(run.Faults), &faults))
	assert.Equal(t, report.Failed, faults)
}

func TestToDbSyncRun_NoFaults(t *testing.T) {
	run, err := ToDbSyncRun(model.RunReport{Succeeded: []string{"ABT"}})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 0, run.Failed)
	assert.JSONEq(t, "{}", run.Faults)
}
