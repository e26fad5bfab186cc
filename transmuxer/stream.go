package transmuxer

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/utils/logger"
)

// Stream transmuxes an FLV stream read from an io.Reader in the background
// and delivers segments in order on Results.
type Stream struct {
	r       *flv.Reader
	tm      *Transmuxer
	results chan *Result

	err error

	stopChan, doneChan   chan struct{}
	startOnce, closeOnce *sync.Once
}

// NewStream returns a stream over r. The reader must start with the FLV file
// header.
func NewStream(r io.Reader, bufSize int) *Stream {
	return &Stream{
		r:         flv.NewReader(r),
		tm:        New(),
		results:   make(chan *Result, bufSize),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}
}

func (s *Stream) String() string {
	return "TRANSMUX_STREAM"
}

// Start launches the read loop. Calling it again has no effect.
func (s *Stream) Start() {
	s.startOnce.Do(func() {
		logger.Debug(s, "Starting stream")
		go s.process()
	})
}

// Results is closed when the stream ends.
func (s *Stream) Results() <-chan *Result {
	return s.results
}

// Done is closed when the read loop has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.doneChan
}

// Err returns the error that ended the stream. It is nil after a clean end of
// input or Close, and only meaningful once Done is closed.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the read loop and waits for it. Results not yet received are
// dropped. A read blocked in the underlying reader is not interrupted.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.startOnce.Do(func() {
			close(s.results)
			close(s.doneChan)
		})
		<-s.doneChan
	})
}

func (s *Stream) process() {
	defer close(s.doneChan)
	defer close(s.results)
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(s, "Panic detected! Recovering from: %v", r)
			logger.Errorf(s, "%s", debug.Stack())
			s.err = fmt.Errorf("transmuxer: panic: %v", r)
		}
	}()

	hdr, err := s.r.ReadHeader()
	if err != nil {
		s.err = err
		logger.Warningf(s, "Detected error: %s", err.Error())
		return
	}
	s.tm.SetHeader(hdr)

	for {
		if err = s.step(); err != nil {
			if !errors.Is(err, errStopped) {
				s.err = err
				logger.Warningf(s, "Detected error: %s", err.Error())
			}
			return
		}
	}
}

var errStopped = errors.New("transmuxer: stream stopped")

func (s *Stream) step() error {
	select {
	case <-s.stopChan:
		return errStopped
	default:
	}
	tag, err := s.r.ReadTag()
	if errors.Is(err, io.EOF) {
		logger.Debugf(s, "End of input with %d tags pending", s.tm.Pending())
		return errStopped
	}
	if err != nil {
		return err
	}
	s.tm.AddTag(tag)

	for {
		res, err := s.tm.Mux()
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}
		select {
		case s.results <- res:
		case <-s.stopChan:
			return errStopped
		}
	}
}
