/*
NAME
  bus.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pull"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"

	"github.com/ausocean/utils/logging"
)

// Default control-bus endpoints. A local message bus is all this needs: one
// process per machine owns the audio hardware, so IPC transport is enough;
// there is deliberately no network exposure.
const (
	DefaultCmdAddr    = "ipc:///tmp/delayline_cmd"
	DefaultStatusAddr = "ipc:///tmp/delayline_status"
)

// pollInterval is the publish-on-change loop's cadence.
const pollInterval = 50 * time.Millisecond

// minBufferPctDelta and minDelayDeltaMs are the smallest changes worth
// re-publishing; smaller movements are noise the clients don't need to see.
const (
	minBufferPctDelta = 1
	minDelayDeltaMs   = 11
)

// frame kinds, per the "K:V" wire protocol.
const (
	kindDelay  = 'D'
	kindBuffer = 'B'
	kindActual = 'C'
)

// encodeFrame renders a "K:V" frame. An empty value renders a bare "K:"
// query frame.
func encodeFrame(kind byte, value string) string {
	return fmt.Sprintf("%c:%s", kind, value)
}

// decodeFrame splits a "K:V" frame into its kind and value. value is empty
// for a query frame ("K:").
func decodeFrame(frame string) (kind byte, value string, err error) {
	if len(frame) == 0 || len(frame) > 16 {
		return 0, "", fmt.Errorf("control: invalid frame length %d", len(frame))
	}
	i := strings.IndexByte(frame, ':')
	if i != 1 {
		return 0, "", fmt.Errorf("control: malformed frame %q", frame)
	}
	return frame[0], frame[2:], nil
}

// Bus wires a Surface to the control-bus wire protocol: a PUSH/PULL `cmd`
// endpoint for client commands and a PUB/SUB `status` endpoint for
// server-published status, matching the original design's two-socket
// command/status split exactly (message order between the two endpoints is
// not guaranteed, and clients must not assume correlation between a command
// and the status frame that answers it).
type Bus struct {
	l       logging.Logger
	surface *Surface
	cmd     mangos.Socket
	status  mangos.Socket
}

// NewBus creates and binds the cmd/status sockets at the given addresses.
func NewBus(l logging.Logger, surface *Surface, cmdAddr, statusAddr string) (*Bus, error) {
	cmdSock, err := pull.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("control: creating cmd socket: %w", err)
	}
	if err := cmdSock.Listen(cmdAddr); err != nil {
		return nil, fmt.Errorf("control: binding cmd socket to %s: %w", cmdAddr, err)
	}

	statusSock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("control: creating status socket: %w", err)
	}
	if err := statusSock.Listen(statusAddr); err != nil {
		return nil, fmt.Errorf("control: binding status socket to %s: %w", statusAddr, err)
	}

	return &Bus{l: l, surface: surface, cmd: cmdSock, status: statusSock}, nil
}

// Close releases both sockets.
func (b *Bus) Close() error {
	err1 := b.cmd.Close()
	err2 := b.status.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Run processes incoming commands and runs the publish-on-change loop until
// stop is closed. It is the control surface thread described in the spec:
// it blocks on command receive with a short timeout, and polls
// change-publishing on a fixed cadence.
func (b *Bus) Run(stop <-chan struct{}) {
	var lastDelay, lastBuffer, lastActual int = -1, -1, -1
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		b.pollCommand()

		select {
		case <-ticker.C:
		case <-stop:
			return
		}

		if d := b.surface.DelaySetting(); d != lastDelay {
			b.publish(kindDelay, d)
			lastDelay = d
		}
		if p := b.surface.BufferPercent(); abs(p-lastBuffer) > minBufferPctDelta {
			b.publish(kindBuffer, p)
			lastBuffer = p
		}
		if a := b.surface.CurrentDelay(); abs(a-lastActual) > minDelayDeltaMs {
			b.publish(kindActual, a)
			lastActual = a
		}
	}
}

// pollCommand does one non-blocking-ish receive attempt with a short
// timeout, so Run can interleave command handling with its publish cadence
// rather than blocking indefinitely in Recv.
func (b *Bus) pollCommand() {
	b.cmd.SetOption(mangos.OptionRecvDeadline, 5*time.Millisecond)
	msg, err := b.cmd.Recv()
	if err != nil {
		return // Timeout or no message; not an error worth logging.
	}

	kind, value, err := decodeFrame(string(msg))
	if err != nil {
		b.l.Warning("control: malformed frame", "error", err.Error())
		return
	}

	switch kind {
	case kindDelay:
		if value == "" {
			b.publish(kindDelay, b.surface.DelaySetting())
			return
		}
		ms, err := strconv.Atoi(value)
		if err != nil {
			b.l.Warning("control: non-numeric delay value", "value", value)
			return
		}
		if !b.surface.SetDelay(ms) {
			b.l.Warning("control: delay out of range, ignored", "ms", ms)
		}
	case kindBuffer:
		b.publish(kindBuffer, b.surface.BufferPercent())
	case kindActual:
		b.publish(kindActual, b.surface.CurrentDelay())
	default:
		b.l.Warning("control: unknown frame kind", "kind", string(kind))
	}
}

func (b *Bus) publish(kind byte, value int) {
	frame := encodeFrame(kind, strconv.Itoa(value))
	if err := b.status.Send([]byte(frame)); err != nil {
		// Missing subscribers are expected; log and continue per the
		// "keep the audio going" error policy.
		b.l.Debug("control: status send failed", "error", err.Error())
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
