package gateway

import (
	"FestivalSupport/tools/errs"
)

// OpContext carries what every handler needs: the gateway services and the
// client the frame arrived on.
type OpContext struct {
	G *Gateway
	C *Client
}

type Handler interface {
	Op() string
	Handle(ctx *OpContext, f *Frame) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Op()] = h }

func (d *Dispatcher) Dispatch(ctx *OpContext, f *Frame) error {
	h, ok := d.handlers[f.Op]
	if !ok {
		return errs.ErrUnknownOp.WithDetail(f.Op)
	}
	return h.Handle(ctx, f)
}
