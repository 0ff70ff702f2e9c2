package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg is a serialised message waiting for the broker to return.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the newest messages while disconnected, dropping the
// oldest once full. Not safe for concurrent use; caller must synchronise.
type ringBuffer struct {
	msgs    []bufferedMsg
	next    int // slot for the next push
	n       int
	dropped int // total dropped since start
	warned  bool
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{msgs: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.msgs)
	if r.n == size {
		r.dropped++
		if !r.warned {
			log.WithField("capacity", size).Warn("mqtt: buffer full, dropping oldest")
			r.warned = true
		}
	} else {
		r.n++
	}
	r.msgs[r.next] = msg
	r.next = (r.next + 1) % size
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	size := len(r.msgs)
	first := (r.next - r.n + size) % size
	out := make([]bufferedMsg, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.msgs[(first+i)%size])
	}
	r.n, r.next, r.warned = 0, 0, false
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}
