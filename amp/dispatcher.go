package amp

import (
	"context"
	"time"
)

// dispatchCommand decodes an inbound _command packet and, if a responder
// is registered for it, runs the handler on its own goroutine. Same
// switch-on-message-type dispatch shape as a Postgres wire-proxy's
// per-message-type read loop, generalized from "one goroutine per relay
// direction" to "one goroutine per inbound command" so a slow handler
// never blocks the read loop for other commands.
func (e *Engine) dispatchCommand(pkt *Packet) {
	nameRaw, _ := pkt.Get(keyCommand)
	cmdName, err := String.Decode(nameRaw)
	if err != nil {
		// Command name itself is malformed; nothing sane to reply with.
		e.fatal(&ErrProtocolFraming{Reason: "malformed _command: " + err.Error()})
		return
	}
	cmd := cmdName.(string)

	askRaw, hasAsk := pkt.Get(keyAsk)
	var tag uint32
	if hasAsk {
		tag, err = decodeTag(askRaw)
		if err != nil {
			e.fatal(err)
			return
		}
	}

	r, known := e.responders[cmd]
	if !known {
		if hasAsk {
			e.sendErrorReply(tag, codeUnhandled, "Unhandled Command: '"+cmd+"'")
		}
		return
	}

	body := pkt.Without(keyCommand, keyAsk)
	args, decErr := decodeArgs(r.Command.Args, body)
	if decErr != nil {
		if hasAsk {
			e.sendErrorReply(tag, codeUnknown, decErr.Error())
		} else {
			e.log.Debug("one-way call: argument decode failed, dropping", "command", cmd, "err", decErr)
		}
		return
	}

	e.wg.Add(1)
	go e.runHandler(r, cmd, tag, hasAsk, args)
}

func (e *Engine) runHandler(r Responder, cmd string, tag uint32, hasAsk bool, args map[string]any) {
	defer e.wg.Done()

	if hasAsk {
		e.emit(MonitorEvent{Tag: tag, Command: cmd, Dir: DirCommandDispatched, Fields: args})
	}

	start := time.Now()
	result, err := r.Handler(context.Background(), e, args)
	dur := time.Since(start)

	if err != nil {
		if !hasAsk {
			e.log.Debug("one-way call: handler failed, dropping", "command", cmd, "err", err)
			return
		}
		code, kind := e.errorCodeFor(r.Command, err)
		e.emit(MonitorEvent{Tag: tag, Command: cmd, Dir: DirErrorSent, Err: err.Error(), Duration: dur})
		_ = kind
		e.sendErrorReply(tag, code, err.Error())
		return
	}

	if !hasAsk {
		return
	}

	reply, encErr := encodeArgs(r.Command.Response, result)
	if encErr != nil {
		if _, ok := encErr.(*ErrTooLong); ok {
			e.sendErrorReply(tag, codeUnknown, "Response too long")
			return
		}
		e.sendErrorReply(tag, codeUnknown, encErr.Error())
		return
	}

	pkt := NewPacket()
	for _, pair := range reply.Pairs() {
		_ = pkt.Set(pair.Key, pair.Value)
	}
	if err := pkt.Set(keyAnswer, encodeTag(tag)); err != nil {
		e.sendErrorReply(tag, codeUnknown, "Response too long")
		return
	}

	e.emit(MonitorEvent{Tag: tag, Command: cmd, Dir: DirAnswerSent, Fields: result, Duration: dur})
	if err := e.writePacket(pkt); err != nil {
		e.log.Debug("failed to write answer", "command", cmd, "tag", tag, "err", err)
	}
}

// errorCodeFor maps a handler error to a wire error code: schema-declared
// errors use their registered code, everything else is UNKNOWN.
func (e *Engine) errorCodeFor(cmd Command, err error) (code string, kind string) {
	type kinded interface{ AmpErrorCode() string }
	if k, ok := err.(kinded); ok {
		if ek, declared := cmd.Errors[k.AmpErrorCode()]; declared {
			return k.AmpErrorCode(), ek.Name
		}
	}
	return codeUnknown, ""
}

func (e *Engine) sendErrorReply(tag uint32, code, description string) {
	pkt := NewPacket()
	_ = pkt.Set(keyError, encodeTag(tag))
	_ = pkt.Set(keyErrorCode, []byte(code))
	descBytes, err := String.Encode(description)
	if err != nil {
		// Description itself is not valid UTF-8: fall back to a
		// placeholder rather than failing while already reporting a failure.
		descBytes = []byte("<description unavailable>")
	}
	_ = pkt.Set(keyErrorDescription, descBytes)
	if err := e.writePacket(pkt); err != nil {
		e.log.Debug("failed to write error reply", "tag", tag, "code", code, "err", err)
	}
}

// handleAnswer resolves the pending call matching an inbound _answer.
func (e *Engine) handleAnswer(raw []byte, pkt *Packet) {
	tag, err := decodeTag(raw)
	if err != nil {
		e.fatal(err)
		return
	}
	cmd, known := e.tracker.commandFor(tag)
	if !known {
		e.dropOrFail(tag, "answer for unknown tag")
		return
	}

	body := pkt.Without(keyAnswer)
	values, decErr := decodeArgs(cmd.Response, body)
	if decErr != nil {
		e.tracker.resolve(tag, callResult{err: decErr})
		return
	}
	e.tracker.resolve(tag, callResult{values: values})
}

// handleError resolves the pending call matching an inbound _error.
func (e *Engine) handleError(raw []byte, pkt *Packet) {
	tag, err := decodeTag(raw)
	if err != nil {
		e.fatal(err)
		return
	}

	codeRaw, _ := pkt.Get(keyErrorCode)
	descRaw, _ := pkt.Get(keyErrorDescription)
	code := string(codeRaw)
	desc := string(descRaw)

	cmd, known := e.tracker.commandFor(tag)
	if !known {
		e.dropOrFail(tag, "error for unknown tag")
		return
	}

	e.tracker.resolve(tag, callResult{err: surfaceRemoteError(cmd, code, desc)})
}

// surfaceRemoteError turns a wire error code/description pair into the
// appropriate typed error for the caller: the two built-in codes get
// dedicated types, a code declared on the command gets a DeclaredRemoteError
// carrying its logical kind, and anything else is a bare RemoteAmpError.
func surfaceRemoteError(cmd Command, code, desc string) error {
	switch code {
	case codeUnknown:
		return &UnknownRemoteError{Description: desc}
	case codeUnhandled:
		return &UnhandledCommandError{Description: desc}
	}
	if kind, ok := cmd.Errors[code]; ok {
		return &DeclaredRemoteError{Code: code, Kind: kind.Name, Description: desc}
	}
	return &RemoteAmpError{Code: code, Description: desc}
}

// dropOrFail implements the Open Question (a) decision in DESIGN.md: an
// answer/error for a tag this engine itself cancelled is dropped with a
// warning; one for a tag never allocated at all is a fatal framing error.
func (e *Engine) dropOrFail(tag uint32, reason string) {
	_, wasCancelled := e.tracker.resolve(tag, callResult{})
	if wasCancelled {
		e.log.Warn("late answer for cancelled call, dropping", "tag", tag, "reason", reason)
		return
	}
	e.fatal(&ErrProtocolFraming{Reason: reason})
}
