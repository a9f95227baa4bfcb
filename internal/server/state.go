package server

import "fmt"

// NetworkState is the lifecycle of the listening server.
//
//	Closed -> Starting -> Running -> Closing -> Closed
//	             \-> Error
type NetworkState int32

const (
	Closed NetworkState = iota
	Starting
	Running
	Closing
	Error
)

func (s NetworkState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Closing:
		return "closing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("NetworkState(%d)", int32(s))
	}
}
