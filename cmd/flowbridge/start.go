// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/bridge"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
	"github.com/spf13/cobra"
)

var bridgeFactory = bridge.NewFlowBridge

var configFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the FlowBridge server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return newInstance(configFile).run()
	},
}

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "f", "./flowbridge.yaml", "Path to the YAML configuration file")
	rootCmd.AddCommand(startCmd)
}

type instance struct {
	configFile string

	ctx       context.Context
	cancelCtx context.CancelFunc
	signals   chan os.Signal
	stopped   atomic.Bool
	done      chan struct{}
}

var running atomic.Pointer[instance]

func newInstance(configFile string) *instance {
	i := &instance{
		configFile: configFile,
		signals:    make(chan os.Signal),
		done:       make(chan struct{}),
	}
	i.ctx, i.cancelCtx = context.WithCancel(log.WithLogField(context.Background(), "pid", strconv.Itoa(os.Getpid())))
	return i
}

func (i *instance) signalHandler() {
	signal.Notify(i.signals, os.Interrupt, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	sig := <-i.signals
	if sig != nil {
		log.L(i.ctx).Infof("Stopping due to signal %s", sig)
		i.stop()
	}
}

func (i *instance) run() (err error) {
	defer func() {
		close(i.done)
		running.Store(nil)
	}()
	running.Store(i)
	go i.signalHandler()

	var conf flowconf.FlowBridgeConfig
	if err := flowconf.ReadAndParseYAMLFile(i.ctx, i.configFile, &conf); err != nil {
		log.L(i.ctx).Error(err.Error())
		return err
	}

	fb := bridgeFactory(i.ctx, &conf)
	// From this point on we need to ensure the bridge is stopped
	defer fb.Stop()

	err = fb.Init()
	if err == nil {
		err = fb.Start()
	}
	if err != nil {
		err = i18n.WrapError(i.ctx, err, msgs.MsgBridgeInitFailed)
		log.L(i.ctx).Error(err.Error())
		return err
	}

	// We're started... we just wait for the request to stop
	<-i.ctx.Done()
	return nil
}

func (i *instance) stop() {
	if i.stopped.CompareAndSwap(false, true) {
		i.cancelCtx()
		close(i.signals)
		<-i.done
	}
}
