package batch

import (
	"fmt"

	"github.com/summarify/sumapi-go/pkg/client"
)

// BatchItemError reports a packet the service answered without evaluations,
// including after a token refresh and resend.
type BatchItemError struct {
	// Packet is the zero based packet index.
	Packet int
	// Offset is the dataset index of the packet's first item.
	Offset int
	// Size is the number of items in the packet.
	Size int
	// Body is the last response body, when there was one.
	Body []byte
	// Err is the underlying failure, if any.
	Err error
}

func (e *BatchItemError) Error() string {
	msg := fmt.Sprintf("batch packet %d (items %d-%d): no evaluations in response", e.Packet, e.Offset, e.Offset+e.Size-1)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying failure.
func (e *BatchItemError) Unwrap() error {
	return e.Err
}

// Is matches client.ErrBatchItem.
func (e *BatchItemError) Is(target error) bool {
	return target == client.ErrBatchItem
}
