package wsproto

import "errors"

// DecodeFrames repeatedly applies ParseFrame to buf, invoking handle for
// each complete frame and stopping at the first ErrInsufficientData (not an
// error) or protocol error. It returns the number of bytes consumed from
// the front of buf and any protocol error encountered; on a protocol error
// the caller should close the connection rather than wait for more data.
func DecodeFrames(buf []byte, handle func(Frame) error) (consumed int, err error) {
	for len(buf) > 0 {
		frame, n, perr := ParseFrame(buf)
		if perr != nil {
			if errors.Is(perr, ErrInsufficientData) {
				return consumed, nil
			}
			return consumed, perr
		}

		if herr := handle(frame); herr != nil {
			return consumed + n, herr
		}

		buf = buf[n:]
		consumed += n
	}
	return consumed, nil
}
