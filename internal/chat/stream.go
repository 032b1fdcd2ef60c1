package chat

import "io"

// AnswerStream is the caller's side of one in-flight answer: a lazy
// sequence of text fragments plus a single terminal signal. Recv returns
// io.EOF exactly once, after the final fragment has been delivered and
// the generated turn persisted; any other error means the stream ended
// without completing and nothing was persisted for it.
type AnswerStream struct {
	fragments chan string
	// err is written by the producer before fragments is closed, so the
	// channel close is the publication barrier.
	err error
}

func newAnswerStream() *AnswerStream {
	// Unbuffered on purpose: a fragment is handed to the caller before
	// the next one is accepted, which is what lets completion-side
	// persistence claim it happens after the last forwarded fragment.
	return &AnswerStream{fragments: make(chan string)}
}

// Recv blocks for the next fragment.
func (s *AnswerStream) Recv() (string, error) {
	frag, ok := <-s.fragments
	if !ok {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	return frag, nil
}

func (s *AnswerStream) finish(err error) {
	s.err = err
	close(s.fragments)
}
