package orchestrator

import "errors"

var (
	errStreamEndedBeforeFirstTick = errors.New("live stream ended before any block-number tick arrived")
	errLiveStreamEnded            = errors.New("live stream ended while in LIVE phase")
)
