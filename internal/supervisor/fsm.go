package supervisor

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	StateAwaitingStart = "awaiting_start"
	StateAwaitingStop  = "awaiting_stop"

	EventStart  = "start"
	EventStop   = "stop"
	EventExited = "exited" // relay 自行退出
)

func newMachine(logger *zap.SugaredLogger) *fsm.FSM {
	return fsm.NewFSM(
		StateAwaitingStart,
		fsm.Events{
			{Name: EventStart, Src: []string{StateAwaitingStart}, Dst: StateAwaitingStop},
			{Name: EventStop, Src: []string{StateAwaitingStop}, Dst: StateAwaitingStart},
			{Name: EventExited, Src: []string{StateAwaitingStop}, Dst: StateAwaitingStart},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Infof("State %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)
}
