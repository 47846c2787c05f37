package subscription

import "fmt"

// State identifies a position in the session protocol state machine.
type State struct {
	id   uint8
	name string
}

func (s State) String() string { return s.name }

// Session states. Closed is terminal and reachable from every state on
// transport closure or protocol violation.
var (
	StateAwaitingHandshake = State{1, "AwaitingHandshake"}
	StateReady             = State{2, "Ready"}
	StateSending           = State{3, "Sending"}
	StateAwaitingAck       = State{4, "AwaitingAck"}
	StateClosed            = State{5, "Closed"}
)

// input is an internal state-machine stimulus: either a message arriving
// from the client or an action the session itself takes.
type input uint8

const (
	inputHandshake input = iota
	inputDeliver
	inputSent
	inputAck
	inputClose
)

var inputNames = map[input]string{
	inputHandshake: "handshake",
	inputDeliver:   "deliver",
	inputSent:      "sent",
	inputAck:       "ack",
	inputClose:     "close",
}

// stateMap is the legal transition table. Anything not listed here is a
// protocol violation.
var stateMap = map[State]map[input]State{
	StateAwaitingHandshake: {
		inputHandshake: StateReady,
		inputClose:     StateClosed,
	},
	StateReady: {
		inputDeliver: StateSending,
		inputClose:   StateClosed,
	},
	StateSending: {
		inputSent:  StateAwaitingAck,
		inputClose: StateClosed,
	},
	StateAwaitingAck: {
		inputAck:   StateReady,
		inputClose: StateClosed,
	},
	StateClosed: {},
}

func nextState(current State, in input) (State, error) {
	next, ok := stateMap[current][in]
	if !ok {
		return StateClosed, fmt.Errorf("illegal %s in state %s", inputNames[in], current)
	}
	return next, nil
}
