package httpd

// Io is one suspension point of the engine: the single outstanding request
// the driver must satisfy before calling Step again.
//
//   - ReadExact, ReadLine: resume with the bytes read.
//   - Write, LogRequest, LogError: resume with nil.
type Io interface {
	isIo()
}

// ReadExact needs exactly Size bytes.
type ReadExact struct {
	Size int
}

// ReadLine needs bytes up to and including the next '\n'. MaxSize is advisory.
type ReadLine struct {
	MaxSize int
}

// Write carries bytes to transmit before anything else happens on the connection.
type Write struct {
	Data []byte
}

// Log is an observability event that needs acknowledgement but no reply.
type Log interface {
	Io
	isLog()
}

type LogRequest struct {
	Request *ParsedRequest
}

type LogError struct {
	Error *Error
}

func (ReadExact) isIo()  {}
func (ReadLine) isIo()   {}
func (Write) isIo()      {}
func (LogRequest) isIo() {}
func (LogError) isIo()   {}

func (LogRequest) isLog() {}
func (LogError) isLog()   {}

// IsRead reports whether io must be resumed with input bytes.
func IsRead(io Io) bool {
	switch io.(type) {
	case ReadExact, ReadLine:
		return true
	}
	return false
}
