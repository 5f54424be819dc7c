// Copyright 2015 trivago GmbH
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

package main

import (
	"flag"
	"fmt"
	"os"
)

// Flags, backed by the standard library's flag package (the teacher's
// own docker/docker/pkg/mflag has no third-party home left in this
// spec's domain stack; see DESIGN.md).
var (
	flagVersion     = flag.Bool("version", false, "Print version information and quit.")
	flagConfigFile  = flag.String("config", "", "Path to the YAML configuration file.")
	flagMetricsPort = flag.Int("metrics-port", 0, "Port to serve /prometheus on. 0 disables the exporter.")
	flagLogLevel    = flag.String("loglevel", "info", "Logging level: debug, info, warn, error.")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stdout, "Usage: wsproxy -config <file> [OPTIONS]\n\nKafka WebSocket proxy.\n\nOptions:")
		flag.PrintDefaults()
	}
}

func parseFlags() {
	flag.Parse()
}
