package queue

import "context"

// Job handles one message type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	MsgType string
	Fn      func(ctx context.Context, payload []byte) error
}

func (j JobFunc) Name() string { return j.JobName }

func (j JobFunc) Type() string { return j.MsgType }

func (j JobFunc) Handle(ctx context.Context, payload []byte) error { return j.Fn(ctx, payload) }

// Permanent marks an error that must not be retried, e.g. a malformed payload.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return "permanent: " + p.Err.Error() }

func (p *Permanent) Unwrap() error { return p.Err }
