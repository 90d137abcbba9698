package reliabletransport

import "github.com/ooni/minisr/internal/model"

// window is the left edge and extent of a sliding window over the modular sequence space.
type window struct {
	// base is the oldest unacknowledged (sender) or undelivered (receiver) sequence number.
	base model.SeqNum

	// size is the window size W.
	size int

	// space is the sequence space size S.
	space int
}

func newWindow(size, space int) window {
	return window{base: 0, size: size, space: space}
}

// offset returns the distance of seq from base, modulo S.
func (w *window) offset(seq model.SeqNum) int {
	return modulo(int(seq)-int(w.base), w.space)
}

// contains returns whether seq falls in [base, base+W) modulo S.
func (w *window) contains(seq model.SeqNum) bool {
	return w.offset(seq) < w.size
}

// valid returns whether seq is a sequence number at all.
func (w *window) valid(seq model.SeqNum) bool {
	return seq >= 0 && int(seq) < w.space
}

// successor returns the sequence number following seq.
func (w *window) successor(seq model.SeqNum) model.SeqNum {
	return model.SeqNum(modulo(int(seq)+1, w.space))
}

// slide moves base one position forward.
func (w *window) slide() {
	w.base = w.successor(w.base)
}

// modulo is the mathematical modulo, always in [0, n).
func modulo(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
