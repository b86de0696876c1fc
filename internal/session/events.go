package session

import (
	"github.com/user/voice-journal/internal/domain"
	"github.com/user/voice-journal/internal/ports"
)

// event is anything the orchestrator loop consumes. Results of background
// work carry the session generation they were started in; channel events
// also carry the listen generation.
type event interface {
	isEvent()
}

type connectCmd struct {
	opts   Options
	output ports.AudioOutput
	reply  chan error
}

type disconnectCmd struct {
	reply chan struct{}
}

type snapshotCmd struct {
	reply chan Snapshot
}

type commitRequested struct{}

type commitTimeout struct {
	gen       uint64
	listenGen uint64
	seq       uint64
}

type listenTimer struct {
	gen uint64
}

type micReady struct {
	gen       uint64
	listenGen uint64
	stream    ports.CaptureStream
	channel   ports.TranscriptionChannel
	err       error
}

type captureEnded struct {
	gen       uint64
	listenGen uint64
	err       error
}

type partialTranscript struct {
	gen       uint64
	listenGen uint64
	text      string
}

type committedTranscript struct {
	gen       uint64
	listenGen uint64
	text      string
}

type channelError struct {
	gen       uint64
	listenGen uint64
	code      string
	message   string
}

type channelClosed struct {
	gen       uint64
	listenGen uint64
	err       error
}

type dialogueResponse struct {
	gen  uint64
	text string
	err  error
}

type synthesisResponse struct {
	gen   uint64
	audio []byte
	err   error
}

type playbackEnded struct {
	gen uint64
	err error
}

func (connectCmd) isEvent()          {}
func (disconnectCmd) isEvent()       {}
func (snapshotCmd) isEvent()         {}
func (commitRequested) isEvent()     {}
func (commitTimeout) isEvent()       {}
func (listenTimer) isEvent()         {}
func (micReady) isEvent()            {}
func (captureEnded) isEvent()        {}
func (partialTranscript) isEvent()   {}
func (committedTranscript) isEvent() {}
func (channelError) isEvent()        {}
func (channelClosed) isEvent()       {}
func (dialogueResponse) isEvent()    {}
func (synthesisResponse) isEvent()   {}
func (playbackEnded) isEvent()       {}

// channelEvent converts an inbound transcription event for the loop.
func channelEvent(gen, listenGen uint64, ev domain.TranscriptEvent) (event, bool) {
	switch ev.Kind {
	case domain.TranscriptPartial:
		return partialTranscript{gen: gen, listenGen: listenGen, text: ev.Text}, true
	case domain.TranscriptCommitted:
		return committedTranscript{gen: gen, listenGen: listenGen, text: ev.Text}, true
	case domain.TranscriptError:
		return channelError{gen: gen, listenGen: listenGen, code: ev.Code, message: ev.Message}, true
	default:
		return nil, false
	}
}
