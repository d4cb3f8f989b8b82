package photometry_test

import (
	"testing"

	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventID(t *testing.T) {
	id, err := photometry.ParseEventID("PrtN 1")
	require.NoError(t, err)
	assert.Equal(t, photometry.EventID{Epoch: "PrtN", Value: 1, HasValue: true}, id)
	assert.Equal(t, "PrtN 1", id.String())

	id, err = photometry.ParseEventID("Cam1")
	require.NoError(t, err)
	assert.False(t, id.HasValue)
	assert.Equal(t, "Cam1", id.String())

	for _, bad := range []string{"", "PrtN x", "a 1 2"} {
		_, err := photometry.ParseEventID(bad)
		assert.ErrorIs(t, err, photometry.ErrInvalidParameter, bad)
	}
}

func codedRecording() *photometry.RawRecording {
	return &photometry.RawRecording{
		Subject: "m1",
		Epochs: map[string]photometry.Epoch{
			"PrtN": {Data: []int{1, 2, 1}, Onset: []float64{1, 2, 3}, Offset: []float64{1.5, 2.5, 3.5}},
			"Cam1": {Onset: []float64{0, 0.1, 0.2}, Notes: &photometry.EpochNotes{Ts: []float64{0.05, 0.15}}},
		},
	}
}

func TestListEventIDs(t *testing.T) {
	assert.Equal(t, []string{"Cam1", "PrtN 1", "PrtN 2"}, photometry.ListEventIDs(codedRecording()))
}

func TestExtractEvent(t *testing.T) {
	rec := codedRecording()

	ev, err := photometry.ExtractEvent(rec, "PrtN 1")
	require.NoError(t, err)
	assert.Equal(t, "PrtN 1", ev.Name)
	assert.Equal(t, []float64{1, 3}, ev.Onsets)
	assert.Equal(t, []float64{1.5, 3.5}, ev.Offsets)
	assert.False(t, ev.IsFrameMarker())

	all, err := photometry.ExtractEvent(rec, "PrtN")
	require.NoError(t, err)
	assert.Len(t, all.Onsets, 3)

	cam, err := photometry.ExtractEvent(rec, "Cam1")
	require.NoError(t, err)
	assert.True(t, cam.IsFrameMarker())
	assert.Equal(t, []float64{0.05, 0.15}, cam.Onsets)

	noNotes := rec.Epochs["Cam1"]
	noNotes.Notes = nil
	rec.Epochs["Cam1"] = noNotes
	cam, err = photometry.ExtractEvent(rec, "Cam1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.1, 0.2}, cam.Onsets)

	_, err = photometry.ExtractEvent(rec, "PrtN 3")
	assert.ErrorIs(t, err, photometry.ErrMissingData)
	_, err = photometry.ExtractEvent(rec, "Lever 1")
	assert.ErrorIs(t, err, photometry.ErrMissingData)
}

func TestAlignSkipsEdgeWindows(t *testing.T) {
	rec := newSyntheticRecording("m1", 10, 100, []float64{0.5, 4, 6.5, 9.5})
	series, err := rec.Series(testSignal, testControl)
	require.NoError(t, err)
	ev, err := photometry.ExtractEvent(rec, "PrtN 1")
	require.NoError(t, err)

	logger := logging.NewMemoryLogger()
	set, err := photometry.NewEventAligner(testSettings()).WithLogger(logger).Align(series, ev, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4}, set.Skipped)
	require.Len(t, set.Trials, 2)
	assert.Equal(t, 2, set.Trials[0].Index)
	assert.Equal(t, 3, set.Trials[1].Index)
	assert.Len(t, logger.EntriesAt(logging.WarnLevel), 2)

	require.Len(t, set.Timestamps, 300)
	assert.InDelta(t, -1.0, set.Timestamps[0], 1e-12)
	assert.InDelta(t, 1.99, set.Timestamps[299], 1e-12)
	for _, tr := range set.Trials {
		assert.Len(t, tr.Signal, 300)
		assert.Len(t, tr.Control, 300)
	}
}

func TestAlignUsesExactRate(t *testing.T) {
	rec := newSyntheticRecording("m1", 10, 100, []float64{5})
	series, err := rec.Series(testSignal, testControl)
	require.NoError(t, err)

	settings := testSettings()
	settings.ExactRateHz = 20
	set, err := photometry.NewEventAligner(settings).Align(series, photometry.Event{Name: "e", Onsets: []float64{5}}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 20.0, set.Rate)
	assert.Len(t, set.Timestamps, 80)
	assert.Len(t, set.Trials[0].Signal, 80)
}

func TestAlignWithoutWindows(t *testing.T) {
	rec := newSyntheticRecording("m1", 10, 100, []float64{0.2})
	series, err := rec.Series(testSignal, testControl)
	require.NoError(t, err)

	aligner := photometry.NewEventAligner(testSettings()).WithLogger(&logging.NoOpLogger{})
	_, err = aligner.Align(series, photometry.Event{Name: "e", Onsets: []float64{0.2}}, 1, 1)
	assert.ErrorIs(t, err, photometry.ErrMissingData)

	_, err = aligner.Align(series, photometry.Event{Name: "e", Onsets: []float64{5}}, 0, 1)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
}
