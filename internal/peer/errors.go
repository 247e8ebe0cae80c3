package peer

import "errors"

var (
	errGatherAborted  = errors.New("peer: ICE gathering aborted")
	errPeerLost       = errors.New("peer: connection lost")
	errAnswererClosed = errors.New("peer: answerer closed")
)
