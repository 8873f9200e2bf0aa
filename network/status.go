package network

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status is what a peer answered to a broadcast.
type Status int

const (
	// The peer accepted the message.
	StatusOK Status = iota
	// The peer refused the message as invalid.
	StatusRejected
	// The peer holds a chain that does not extend from ours, it may be longer.
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	case StatusConflict:
		return "conflict"
	}
	return "unknown"
}

// StatusFromError maps the error of an RPC to the peer's answer. ok is false
// when the error says nothing about the peer's opinion, for example when the
// peer was unreachable or timed out, and the peer should be skipped.
func StatusFromError(err error) (s Status, ok bool) {
	switch status.Code(err) {
	case codes.OK:
		return StatusOK, true
	case codes.InvalidArgument, codes.Internal, codes.FailedPrecondition:
		return StatusRejected, true
	case codes.Aborted:
		return StatusConflict, true
	}
	return StatusRejected, false
}

// Error returned by a server handler to answer with s.
func (s Status) Error(msg string) error {
	switch s {
	case StatusOK:
		return nil
	case StatusConflict:
		return status.Error(codes.Aborted, msg)
	}
	return status.Error(codes.InvalidArgument, msg)
}
