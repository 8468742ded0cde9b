package domain

import "errors"

var (
	// ErrBankMalformed is returned when the question source fails validation.
	// The bot refuses to start with a bad bank.
	ErrBankMalformed = errors.New("question bank malformed")
	// ErrSessionActive is returned when a quiz is already running in the chat.
	ErrSessionActive = errors.New("quiz session already active")
	// ErrNoSession is returned when a command needs a running quiz and none exists.
	ErrNoSession = errors.New("no active quiz session")
	// ErrNoRetest is returned when a retest is requested with nothing to retry.
	ErrNoRetest = errors.New("no wrong answers to retest")
)
