// Copyright 2015-2016 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// +build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

func newSignalHandler() chan os.Signal {
	signalHandler := make(chan os.Signal, 1)
	signal.Notify(signalHandler, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	return signalHandler
}

// translateSignal maps SIGINT/SIGTERM to a clean shutdown. SIGHUP is
// kept as a distinct, logged no-op rather than folded into signalExit:
// config is read once at startup and never mutated (spec.md §5 "Shared-
// resource policy"), so there is nothing to reload, but operators
// sending SIGHUP to ask for one shouldn't have it silently kill the
// process instead.
func translateSignal(sig os.Signal) signalType {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return signalExit

	case syscall.SIGHUP:
		return signalRoll
	}

	return signalNone
}
