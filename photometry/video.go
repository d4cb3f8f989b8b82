package photometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
)

// toleranceStep widens the frame matching tolerance when fewer than two
// frames fall within one inter-frame interval
const toleranceStep = 0.03

// VideoFrameAligner finds the pair of camera frames bracketing each trial onset
type VideoFrameAligner struct {
	settings config.Settings
	logger   logging.Logger
}

// NewVideoFrameAligner creates a frame aligner for the given settings
func NewVideoFrameAligner(settings config.Settings) *VideoFrameAligner {
	return &VideoFrameAligner{
		settings: settings,
		logger: logging.WithFields(logging.Fields{
			"component": "video_frame_aligner",
		}),
	}
}

// WithLogger replaces the aligner's logger
func (v *VideoFrameAligner) WithLogger(logger logging.Logger) *VideoFrameAligner {
	v.logger = logger
	return v
}

// HardwareShift returns the capture lag correction for a video recorded at fps
func (v *VideoFrameAligner) HardwareShift(fps float64) int {
	if fps == v.settings.VideoHardwareShiftFPS {
		return v.settings.VideoHardwareShift
	}
	return 0
}

// Align matches each trial (1-based index into eventOnsets, all trials when
// trials is empty) to camera frames. The trial time in camera time is
// eventOnset + cameraOnsets[0]. Frames within one mean inter-frame interval
// are candidates; more than two are narrowed to the two closest, fewer than
// two trigger one retry with the tolerance widened by 30 ms. Every frame
// index is shifted by userShift plus the hardware shift for videoFPS. Trials
// still unmatched, or shifted past either end of the camera track, are
// reported in Failures.
func (v *VideoFrameAligner) Align(cameraOnsets, eventOnsets []float64, trials []int, userShift int, videoFPS float64) (*FrameAlignmentResult, error) {
	if len(cameraOnsets) < 2 {
		return nil, &MissingDataError{What: "camera frames", Reason: fmt.Sprintf("need at least 2 frame onsets, got %d", len(cameraOnsets))}
	}
	if len(eventOnsets) == 0 {
		return nil, &MissingDataError{What: "event onsets", Reason: "no trials to align"}
	}

	if len(trials) == 0 {
		trials = make([]int, len(eventOnsets))
		for i := range trials {
			trials[i] = i + 1
		}
	}
	for _, trial := range trials {
		if trial < 1 || trial > len(eventOnsets) {
			return nil, &InvalidParameterError{Field: "trials", Value: trial, Reason: fmt.Sprintf("event has %d trials", len(eventOnsets))}
		}
	}

	tolerance := (cameraOnsets[len(cameraOnsets)-1] - cameraOnsets[0]) / float64(len(cameraOnsets)-1)
	shift := userShift + v.HardwareShift(videoFPS)
	result := &FrameAlignmentResult{Shift: shift, Alignments: []FrameAlignment{}}

	for _, trial := range trials {
		trialTs := eventOnsets[trial-1] + cameraOnsets[0]

		frames := framesWithin(cameraOnsets, trialTs, tolerance)
		if len(frames) < 2 {
			frames = framesWithin(cameraOnsets, trialTs, tolerance+toleranceStep)
		}
		if len(frames) < 2 {
			failure := &AlignmentError{Trial: trial, Candidates: len(frames), Reason: "fewer than two frames near trial onset"}
			result.Failures = append(result.Failures, failure)
			v.logger.Warn("Frame alignment failed", logging.Fields{
				"trial":      trial,
				"trial_ts":   trialTs,
				"candidates": len(frames),
			})
			continue
		}
		if len(frames) > 2 {
			frames = closestFrames(cameraOnsets, frames, trialTs)
		}

		before, after := frames[0]+shift, frames[1]+shift
		if before < 0 || after >= len(cameraOnsets) {
			failure := &AlignmentError{Trial: trial, Candidates: len(frames), Reason: fmt.Sprintf("shift %d moves frames %d-%d outside the video", shift, frames[0], frames[1])}
			result.Failures = append(result.Failures, failure)
			v.logger.Warn("Shifted frames outside video", logging.Fields{
				"trial":        trial,
				"before_frame": before,
				"after_frame":  after,
				"shift":        shift,
			})
			continue
		}

		result.Alignments = append(result.Alignments, FrameAlignment{
			Trial:       trial,
			BeforeFrame: before,
			AfterFrame:  after,
		})
	}

	v.logger.Debug("Aligned video frames", logging.Fields{
		"trials":   len(trials),
		"aligned":  len(result.Alignments),
		"failures": len(result.Failures),
		"shift":    shift,
	})
	return result, nil
}

// framesWithin returns the indices of the onsets within tol of t, in order
func framesWithin(onsets []float64, t, tol float64) []int {
	var frames []int
	for i, onset := range onsets {
		if math.Abs(onset-t) <= tol {
			frames = append(frames, i)
		}
	}
	return frames
}

// closestFrames keeps the two candidates nearest to t, returned in index order
func closestFrames(onsets []float64, frames []int, t float64) []int {
	sorted := append([]int(nil), frames...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return math.Abs(onsets[sorted[a]]-t) < math.Abs(onsets[sorted[b]]-t)
	})
	pair := sorted[:2]
	sort.Ints(pair)
	return pair
}
