package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenMessageID returns a process-unique server-side message id.
func GenMessageID() string {
	return fmt.Sprintf("msg-%d-%d", time.Now().UTC().UnixNano(), atomic.AddUint64(&idSeq, 1))
}

// GenSessionID returns a process-unique session id.
func GenSessionID() string {
	return fmt.Sprintf("session-%d-%d", time.Now().UTC().UnixNano(), atomic.AddUint64(&idSeq, 1))
}

// GenUploadID returns a process-unique upload id.
func GenUploadID() string {
	return fmt.Sprintf("upload-%d-%d", time.Now().UTC().UnixNano(), atomic.AddUint64(&idSeq, 1))
}
