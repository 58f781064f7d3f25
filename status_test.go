package resflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLedger_DefaultsAndRoot(t *testing.T) {
	var ledger StatusLedger

	assert.Equal(t, StatusEmpty, ledger.RootStatus())
	assert.Equal(t, StatusPending, ledger.Status("", StatusPending))
	assert.Equal(t, StatusNone, ledger.Status("review", StatusNone))

	require.NoError(t, ledger.SetRootStatus(StatusWorking))
	require.NoError(t, ledger.SetStatus("review", StatusApproved))

	assert.Equal(t, StatusWorking, ledger.RootStatus())
	assert.Equal(t, StatusWorking, ledger.Status("", StatusPending))
	assert.Equal(t, StatusApproved, ledger.Status("review", StatusPending))
}

func TestStatusLedger_EmptyValueReadsAsDefault(t *testing.T) {
	ledger := StatusLedger{}
	require.NoError(t, ledger.SetStatus("key", StatusEmpty))

	assert.Equal(t, StatusPending, ledger.Status("key", StatusPending))
}

func TestStatusLedger_RejectsUnknownStatus(t *testing.T) {
	ledger := StatusLedger{}

	err := ledger.SetRootStatus(Status("Exploded"))
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Empty(t, ledger)
}

func TestStatusLedger_Clear(t *testing.T) {
	ledger := StatusLedger{}
	require.NoError(t, ledger.SetStatus("a", StatusComplete))
	require.NoError(t, ledger.SetRootStatus(StatusError))

	ledger.ClearStatus("a")
	ledger.ClearStatus("")

	assert.Equal(t, StatusPending, ledger.Status("a", StatusPending))
	assert.Equal(t, StatusEmpty, ledger.RootStatus())

	var empty StatusLedger
	empty.ClearStatus("a")
	assert.Nil(t, empty)
}

func TestStatus_SetsAndStyle(t *testing.T) {
	tests := []struct {
		status Status
		style  string
	}{
		{StatusComplete, "success"},
		{StatusApproved, "success"},
		{StatusError, "danger"},
		{StatusRejected, "danger"},
		{StatusWorking, "warning"},
		{StatusUnderReview, "warning"},
		{StatusPending, "primary"},
		{StatusContinue, "primary"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.style, tt.status.Style())
		})
	}
}

func TestStatus_CompleteSet(t *testing.T) {
	assert.True(t, StatusComplete.In(CompleteStatuses))
	assert.True(t, StatusReviewed.In(CompleteStatuses))
	assert.False(t, StatusSubmitted.In(CompleteStatuses))
	assert.False(t, StatusError.In(CompleteStatuses))
	assert.Contains(t, ValidStatuses(), StatusChangesRequested)
}

func TestStatusLedger_RoundTripsEveryValidStatus(t *testing.T) {
	for _, status := range ValidStatuses() {
		t.Run("status "+string(status), func(t *testing.T) {
			ledger := StatusLedger{}
			require.NoError(t, ledger.SetStatus("review", status))
			require.NoError(t, ledger.SetRootStatus(status))

			want := status
			if status == StatusEmpty {
				want = StatusUnknown
			}
			assert.Equal(t, want, ledger.Status("review", StatusUnknown))
			assert.Equal(t, status, ledger.RootStatus())
		})
	}
}

func TestStatusLedger_RejectedWriteKeepsPriorState(t *testing.T) {
	tests := []struct {
		name string
		key  string
		bad  Status
	}{
		{name: "root key", key: "", bad: Status("Exploded")},
		{name: "existing key", key: "review", bad: Status("approved")},
		{name: "new key", key: "audit", bad: Status("Done!")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := StatusLedger{}
			require.NoError(t, ledger.SetRootStatus(StatusWorking))
			require.NoError(t, ledger.SetStatus("review", StatusApproved))
			before := StatusLedger{RootStatusKey: StatusWorking, "review": StatusApproved}

			err := ledger.SetStatus(tt.key, tt.bad)
			require.ErrorIs(t, err, ErrInvalidStatus)
			assert.Equal(t, before, ledger)
		})
	}
}
