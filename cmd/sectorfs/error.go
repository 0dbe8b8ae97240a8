package main

import "errors"

var (
	// ErrNoImageConfigured is an error that occurs when neither the
	// configuration file nor the command line name a device image to serve.
	ErrNoImageConfigured = errors.New("no device image configured")

	// ErrUnknownCommand is an error that occurs when an unknown console
	// command is entered.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage is an error that occurs when a console command is entered
	// with the wrong arguments.
	ErrUsage = errors.New("usage")

	// ErrIsDirectory is an error that occurs when a file-only console
	// command targets a directory.
	ErrIsDirectory = errors.New("path is a directory")
)
