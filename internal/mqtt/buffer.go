package mqtt

// pendingMsg is a serialized message waiting for the broker to come back.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds up to capacity pending messages in publish order. When full,
// the oldest message is dropped. Callers synchronize access.
type outbox struct {
	msgs     []pendingMsg
	capacity int
	start    int // index of the oldest message
	count    int
	dropped  int // messages discarded since the last take
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{
		msgs:     make([]pendingMsg, capacity),
		capacity: capacity,
	}
}

// add queues msg and reports whether an older message had to be dropped.
func (o *outbox) add(msg pendingMsg) bool {
	if o.count == o.capacity {
		o.msgs[o.start] = msg
		o.start = (o.start + 1) % o.capacity
		o.dropped++
		return true
	}
	o.msgs[(o.start+o.count)%o.capacity] = msg
	o.count++
	return false
}

// take empties the outbox, returning the queued messages oldest first and
// the number dropped since the previous take.
func (o *outbox) take() ([]pendingMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.count == 0 {
		return nil, dropped
	}

	out := make([]pendingMsg, o.count)
	for i := range out {
		j := (o.start + i) % o.capacity
		out[i] = o.msgs[j]
		o.msgs[j] = pendingMsg{}
	}
	o.start = 0
	o.count = 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
