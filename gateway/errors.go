package gateway

import "errors"

var (
	ErrNotParticipant  = errors.New("payload sender is not a participant")
	ErrWrongKind       = errors.New("payload kind is not accepted by the round")
	ErrUnknownRound    = errors.New("payload targets an unknown round")
	ErrStalePayload    = errors.New("payload targets a period that is already confirmed")
	ErrRoundClosed     = errors.New("round is already confirmed")
	ErrRoundSuperseded = errors.New("another round was confirmed for this period")
	ErrBadSignature    = errors.New("payload signature verification failed")
	ErrCollectorClosed = errors.New("collector is closed")
)
