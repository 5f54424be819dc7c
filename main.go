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

	"github.com/sirupsen/logrus"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/kafkawsproxy/wsproxy/config"
)

func main() {
	parseFlags()

	if *flagVersion {
		fmt.Println(GetVersionString())
		return // ### return, version only ###
	}

	if level, err := logrus.ParseLevel(*flagLogLevel); err == nil {
		logrus.SetLevel(level)
	}

	if *flagConfigFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	// automaxprocs sets GOMAXPROCS from the container cgroup quota rather
	// than the host's full core count, so the process doesn't over-
	// schedule when run under a Kubernetes limit.
	if _, err := maxprocs.Set(maxprocs.Logger(logrus.Debugf)); err != nil {
		logrus.WithError(err).Warn("failed to set GOMAXPROCS from cgroup")
	}

	cfg, err := config.Read(*flagConfigFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read configuration")
	}

	co := NewCoordinator()
	if err := co.Configure(cfg); err != nil {
		logrus.WithError(err).Fatal("failed to configure")
	}

	co.StartMetrics(*flagMetricsPort)

	if err := co.StartSessionHandler(); err != nil {
		logrus.WithError(err).Fatal("session handler failed to catch up to the log")
	}

	co.StartSocketServer()
	co.Run()
	co.Shutdown()
}
